// Package util contains internal helpers (structural hashing).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"encoding/binary"
	"math"
	"reflect"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// maxDepth bounds recursion through pointers and nested containers.
// Deeper structure is folded into the digest by type only.
const maxDepth = 32

// Digest returns a 64-bit structural content hash of v.
//
// Two values with equal dynamic type and equal content produce the same
// digest, independent of memory addresses: pointers are followed, maps are
// hashed in key-digest order, unexported struct fields are included.
// Funcs, channels and unsafe pointers have no content and hash by address.
func Digest(v any) uint64 {
	d := xxhash.New()
	w := digester{d: d, seen: make(map[uintptr]struct{})}
	w.value(reflect.ValueOf(v), 0)
	return d.Sum64()
}

type digester struct {
	d    *xxhash.Digest
	seen map[uintptr]struct{}
	buf  [8]byte
}

func (w *digester) str(s string) {
	w.u64(uint64(len(s)))
	_, _ = w.d.WriteString(s)
}

func (w *digester) u64(u uint64) {
	binary.LittleEndian.PutUint64(w.buf[:], u)
	_, _ = w.d.Write(w.buf[:])
}

func (w *digester) value(v reflect.Value, depth int) {
	if !v.IsValid() {
		w.str("<nil>")
		return
	}
	t := v.Type()
	w.str(t.String())
	if depth > maxDepth {
		return
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			w.u64(1)
		} else {
			w.u64(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.u64(uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.u64(v.Uint())
	case reflect.Float32, reflect.Float64:
		w.u64(math.Float64bits(v.Float()))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		w.u64(math.Float64bits(real(c)))
		w.u64(math.Float64bits(imag(c)))
	case reflect.String:
		w.str(v.String())
	case reflect.Slice:
		if v.IsNil() {
			w.str("<nil>")
			return
		}
		if t.Elem().Kind() == reflect.Uint8 {
			w.u64(uint64(v.Len()))
			_, _ = w.d.Write(v.Bytes())
			return
		}
		fallthrough
	case reflect.Array:
		w.u64(uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			w.value(v.Index(i), depth+1)
		}
	case reflect.Map:
		if v.IsNil() {
			w.str("<nil>")
			return
		}
		// order-independent: hash each entry separately, then sort
		entries := make([]uint64, 0, v.Len())
		it := v.MapRange()
		for it.Next() {
			sub := digester{d: xxhash.New(), seen: w.seen}
			sub.value(it.Key(), depth+1)
			sub.value(it.Value(), depth+1)
			entries = append(entries, sub.d.Sum64())
		}
		slices.Sort(entries)
		w.u64(uint64(len(entries)))
		for _, e := range entries {
			w.u64(e)
		}
	case reflect.Struct:
		w.u64(uint64(v.NumField()))
		for i := 0; i < v.NumField(); i++ {
			w.str(t.Field(i).Name)
			w.value(v.Field(i), depth+1)
		}
	case reflect.Pointer:
		if v.IsNil() {
			w.str("<nil>")
			return
		}
		p := v.Pointer()
		if _, ok := w.seen[p]; ok {
			w.str("<cycle>")
			return
		}
		w.seen[p] = struct{}{}
		w.value(v.Elem(), depth+1)
		delete(w.seen, p)
	case reflect.Interface:
		if v.IsNil() {
			w.str("<nil>")
			return
		}
		w.value(v.Elem(), depth+1)
	default:
		// Func, Chan, UnsafePointer: identity only.
		w.u64(uint64(v.Pointer()))
	}
}
