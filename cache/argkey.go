package cache

import (
	"slices"
	"strconv"
	"strings"

	"github.com/DIDONEproject/musif-sub000/internal/util"
)

// ArgumentKey is the canonical fingerprint of a call's argument list.
//
// Positional slots come first, in order; keyword slots follow sorted by
// name. A proxy slot is encoded by the proxy's surrogate id, never by its
// address or content, so building a key never forces a resurrection and
// keys built before and after a snapshot round trip compare equal. A
// plain slot is encoded by its structural content digest.
type ArgumentKey string

// NewArgumentKey fingerprints bound arguments.
func NewArgumentKey(args []Arg, kwargs map[string]Arg) ArgumentKey {
	if len(args) == 0 && len(kwargs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteByte(';')
		}
		writeSlot(&b, a)
	}
	if len(kwargs) > 0 {
		names := make([]string, 0, len(kwargs))
		for k := range kwargs {
			names = append(names, k)
		}
		slices.Sort(names)
		for _, k := range names {
			b.WriteByte('|')
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeSlot(&b, kwargs[k])
		}
	}
	return ArgumentKey(b.String())
}

func writeSlot(b *strings.Builder, a Arg) {
	switch {
	case a.Ref != nil:
		b.WriteByte('#')
		b.WriteString(strconv.FormatUint(a.Ref.ID(), 36))
	case a.List:
		b.WriteByte('[')
		for i, it := range a.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			writeSlot(b, it)
		}
		b.WriteByte(']')
	default:
		b.WriteByte('=')
		b.WriteString(strconv.FormatUint(util.Digest(a.Value), 16))
	}
}
