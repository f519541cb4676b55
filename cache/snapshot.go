package cache

import (
	"cmp"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"slices"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/klauspost/compress/zstd"
)

const (
	snapshotVersion = 1

	flagZstd  byte = 'z'
	flagPlain byte = 'g'
)

// RegisterPlain records a concrete plain type so that it can travel inside
// a snapshot (cached results, constructor arguments, plain call arguments).
// Basic types and slices of them are always available.
func RegisterPlain(v any) { gob.Register(v) }

// Persisted tables. Handles and nodes reference each other by surrogate
// id only, so shared ancestors stay shared after Load.
type snapshot struct {
	Version int
	Root    uint64
	// NextID is the last surrogate id the saving cache issued. Argument
	// keys in Entries may name any id up to it.
	NextID  uint64
	Handles []handleRecord
	Nodes   []nodeRecord
}

type handleRecord struct {
	ID          uint64
	Kind        RecipeKind
	Constructor string
	Args        []any
	Parent      uint64
	Steps       []stepRecord
}

type stepRecord struct {
	Name   string
	Call   bool
	Args   []argRecord
	Kwargs map[string]argRecord
}

type argRecord struct {
	Ref   uint64
	List  bool
	Items []argRecord
	Value any
}

type nodeRecord struct {
	ID      uint64
	Entries []entryRecord
}

type entryRecord struct {
	Key   string
	Value valueRecord
}

type valueRecord struct {
	Kind   Kind
	Plain  any
	Node   uint64
	Items  []valueRecord
	Method *methodRecord
}

type methodRecord struct {
	Name  string
	Calls []callRecord
}

type callRecord struct {
	Key   string
	Value valueRecord
}

// Save writes root, every proxy reachable through its cache and every
// handle those proxies depend on (recipe parents, handle arguments).
// Live objects are never written. With Options.Compression > 0 the gob
// stream is zstd-compressed at that level.
func (c *Cache) Save(w io.Writer, root *Proxy) error {
	s := snapshot{Version: snapshotVersion, Root: root.ID(), NextID: c.nextID.Load()}

	var proxies []*Proxy
	root.walk(func(p *Proxy) { proxies = append(proxies, p) })

	enc := &recorder{seen: make(map[uint64]bool)}
	for _, p := range proxies {
		enc.handle(p.handle)
	}
	for _, p := range proxies {
		n := nodeRecord{ID: p.ID()}
		for _, k := range p.Keys() {
			v, _ := p.Cached(k)
			n.Entries = append(n.Entries, entryRecord{Key: k, Value: enc.value(v)})
		}
		s.Nodes = append(s.Nodes, n)
	}
	s.Handles = enc.handles
	slices.SortFunc(s.Handles, func(a, b handleRecord) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Nodes, func(a, b nodeRecord) int { return cmp.Compare(a.ID, b.ID) })

	flag := flagPlain
	if c.opt.Compression > 0 {
		flag = flagZstd
	}
	if _, err := w.Write([]byte{flag}); err != nil {
		return err
	}
	var (
		out io.Writer = w
		zw  *zstd.Encoder
	)
	if flag == flagZstd {
		var err error
		zw, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.opt.Compression)))
		if err != nil {
			return platformerrors.Wrap(err, platformerrors.CodeExecutionFailed, "create zstd encoder")
		}
		out = zw
	}
	if err := gob.NewEncoder(out).Encode(&s); err != nil {
		if zw != nil {
			zw.Close()
		}
		return platformerrors.Wrap(err, platformerrors.CodeExecutionFailed, "encode snapshot")
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	c.log.Debug("snapshot saved", "root", s.Root, "handles", len(s.Handles), "nodes", len(s.Nodes))
	return nil
}

// Load reads a snapshot written by Save and returns its root proxy. Every
// handle comes back detached; cached reads are served without touching
// any real object, and misses resurrect from the persisted recipes.
func (c *Cache) Load(r io.Reader) (*Proxy, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return nil, badSnapshot("read header", err)
	}

	in := r
	switch flag[0] {
	case flagPlain:
	case flagZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, badSnapshot("create zstd decoder", err)
		}
		defer zr.Close()
		in = zr
	default:
		return nil, badSnapshot(fmt.Sprintf("unknown format flag %q", flag[0]), nil)
	}

	var s snapshot
	if err := gob.NewDecoder(in).Decode(&s); err != nil {
		return nil, badSnapshot("decode", err)
	}
	if s.Version != snapshotVersion {
		return nil, badSnapshot(fmt.Sprintf("unsupported version %d", s.Version), nil)
	}
	if err := c.claimIDs(snapshotIDs(&s)); err != nil {
		return nil, err
	}

	dec := &restorer{
		c:       c,
		handles: make(map[uint64]*Handle, len(s.Handles)),
		proxies: make(map[uint64]*Proxy, len(s.Nodes)),
	}
	for _, hr := range s.Handles {
		dec.handles[hr.ID] = &Handle{id: hr.ID, owner: c}
	}
	for _, hr := range s.Handles {
		dec.handles[hr.ID].recipe = dec.recipe(hr)
	}
	for _, n := range s.Nodes {
		h, ok := dec.handles[n.ID]
		if !ok {
			return nil, badSnapshot(fmt.Sprintf("node %d has no handle", n.ID), nil)
		}
		dec.proxies[n.ID] = c.newProxy(h)
	}
	for _, n := range s.Nodes {
		p := dec.proxies[n.ID]
		for _, e := range n.Entries {
			v, err := dec.value(p, e.Value)
			if err != nil {
				return nil, err
			}
			p.set(e.Key, v)
		}
	}
	root, ok := dec.proxies[s.Root]
	if !ok {
		return nil, badSnapshot(fmt.Sprintf("root %d has no node", s.Root), nil)
	}
	c.reserveIDs(dec.maxID)
	c.log.Debug("snapshot loaded", "root", s.Root, "handles", len(s.Handles), "nodes", len(s.Nodes))
	return root, nil
}

// SaveFile writes the snapshot to path through a temporary file renamed
// into place.
func (c *Cache) SaveFile(path string, root *Proxy) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	err = c.Save(file, root)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}
	return os.Rename(tempPath, path)
}

// LoadFile reads a snapshot from path.
func (c *Cache) LoadFile(path string) (*Proxy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return c.Load(file)
}

// snapshotIDs returns the highest surrogate id s may refer to.
func snapshotIDs(s *snapshot) uint64 {
	top := max(s.NextID, s.Root)
	for _, hr := range s.Handles {
		top = max(top, hr.ID, hr.Parent)
	}
	return top
}

func badSnapshot(msg string, cause error) error {
	if cause == nil {
		return wrapCoded(ErrBadSnapshot, platformerrors.CodeInvalidInput, "load snapshot: "+msg, nil)
	}
	return wrapCoded(ErrBadSnapshot, platformerrors.CodeInvalidInput, "load snapshot: "+msg,
		map[string]interface{}{"cause": cause.Error()})
}

// recorder flattens handles and values into records.
type recorder struct {
	seen    map[uint64]bool
	handles []handleRecord
}

func (e *recorder) handle(h *Handle) {
	if h == nil || e.seen[h.id] {
		return
	}
	e.seen[h.id] = true
	hr := handleRecord{ID: h.id, Kind: RecipeNone}
	switch r := h.recipe.(type) {
	case Direct:
		hr.Kind = RecipeDirect
		hr.Constructor = r.Constructor
		hr.Args = r.Args
	case Derived:
		hr.Kind = RecipeDerived
		if r.Parent != nil {
			hr.Parent = r.Parent.id
			e.handle(r.Parent)
		}
		hr.Steps = make([]stepRecord, len(r.Steps))
		for i, s := range r.Steps {
			hr.Steps[i] = e.step(s)
		}
	}
	e.handles = append(e.handles, hr)
}

func (e *recorder) step(s Step) stepRecord {
	sr := stepRecord{Name: s.Name, Call: s.Call}
	if len(s.Args) > 0 {
		sr.Args = make([]argRecord, len(s.Args))
		for i, a := range s.Args {
			sr.Args[i] = e.arg(a)
		}
	}
	if len(s.Kwargs) > 0 {
		sr.Kwargs = make(map[string]argRecord, len(s.Kwargs))
		for k, a := range s.Kwargs {
			sr.Kwargs[k] = e.arg(a)
		}
	}
	return sr
}

func (e *recorder) arg(a Arg) argRecord {
	switch {
	case a.Ref != nil:
		e.handle(a.Ref)
		return argRecord{Ref: a.Ref.id}
	case a.List:
		items := make([]argRecord, len(a.Items))
		for i, it := range a.Items {
			items[i] = e.arg(it)
		}
		return argRecord{List: true, Items: items}
	default:
		return argRecord{Value: a.Value}
	}
}

func (e *recorder) value(v Value) valueRecord {
	switch v.Kind() {
	case KindPlain:
		return valueRecord{Kind: KindPlain, Plain: v.plain}
	case KindNode:
		return valueRecord{Kind: KindNode, Node: v.node.ID()}
	case KindSequence:
		items := make([]valueRecord, len(v.items))
		for i, it := range v.items {
			items[i] = e.value(it)
		}
		return valueRecord{Kind: KindSequence, Items: items}
	case KindMethod:
		calls := v.method.entries()
		mr := &methodRecord{Name: v.method.name, Calls: make([]callRecord, 0, len(calls))}
		for k, r := range calls {
			mr.Calls = append(mr.Calls, callRecord{Key: string(k), Value: e.value(r)})
		}
		slices.SortFunc(mr.Calls, func(a, b callRecord) int { return cmp.Compare(a.Key, b.Key) })
		return valueRecord{Kind: KindMethod, Method: mr}
	default:
		return valueRecord{Kind: KindNone}
	}
}

// restorer rebuilds handles, proxies and values from records.
type restorer struct {
	c       *Cache
	handles map[uint64]*Handle
	proxies map[uint64]*Proxy
	maxID   uint64
}

// ref returns the handle for id. Unknown ids get a detached handle without
// a recipe so that using it fails with ErrNotResurrectable.
func (d *restorer) ref(id uint64) *Handle {
	if id > d.maxID {
		d.maxID = id
	}
	h, ok := d.handles[id]
	if !ok {
		h = &Handle{id: id, owner: d.c}
		d.handles[id] = h
	}
	return h
}

func (d *restorer) recipe(hr handleRecord) Recipe {
	if hr.ID > d.maxID {
		d.maxID = hr.ID
	}
	switch hr.Kind {
	case RecipeDirect:
		return Direct{Constructor: hr.Constructor, Args: hr.Args}
	case RecipeDerived:
		r := Derived{Steps: make([]Step, len(hr.Steps))}
		if hr.Parent != 0 {
			r.Parent = d.handles[hr.Parent]
		}
		for i, sr := range hr.Steps {
			r.Steps[i] = d.step(sr)
		}
		return r
	default:
		return nil
	}
}

func (d *restorer) step(sr stepRecord) Step {
	s := Step{Name: sr.Name, Call: sr.Call}
	if len(sr.Args) > 0 {
		s.Args = make([]Arg, len(sr.Args))
		for i, a := range sr.Args {
			s.Args[i] = d.arg(a)
		}
	}
	if len(sr.Kwargs) > 0 {
		s.Kwargs = make(map[string]Arg, len(sr.Kwargs))
		for k, a := range sr.Kwargs {
			s.Kwargs[k] = d.arg(a)
		}
	}
	return s
}

func (d *restorer) arg(ar argRecord) Arg {
	switch {
	case ar.Ref != 0:
		return Arg{Ref: d.ref(ar.Ref)}
	case ar.List:
		items := make([]Arg, len(ar.Items))
		for i, it := range ar.Items {
			items[i] = d.arg(it)
		}
		return Arg{List: true, Items: items}
	default:
		return Arg{Value: ar.Value}
	}
}

func (d *restorer) value(owner *Proxy, vr valueRecord) (Value, error) {
	switch vr.Kind {
	case KindPlain:
		return Plain(vr.Plain), nil
	case KindNone:
		return None(), nil
	case KindNode:
		p, ok := d.proxies[vr.Node]
		if !ok {
			return Value{}, badSnapshot(fmt.Sprintf("entry references unknown node %d", vr.Node), nil)
		}
		return nodeValue(p), nil
	case KindSequence:
		items := make([]Value, len(vr.Items))
		for i, it := range vr.Items {
			v, err := d.value(owner, it)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return seqValue(items), nil
	case KindMethod:
		if vr.Method == nil {
			return Value{}, badSnapshot("method entry without calls table", nil)
		}
		m := newMethod(owner, vr.Method.Name, false)
		for _, cr := range vr.Method.Calls {
			v, err := d.value(owner, cr.Value)
			if err != nil {
				return Value{}, err
			}
			m.calls[ArgumentKey(cr.Key)] = v
		}
		return methodValue(m), nil
	default:
		return Value{}, badSnapshot(fmt.Sprintf("unknown value kind %d", vr.Kind), nil)
	}
}
