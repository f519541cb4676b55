package cache

// Reserved cache keys for container operations. They double as accessor
// names in Derived steps.
const (
	keyIter    = "__iter__"
	keyLen     = "__len__"
	keyBool    = "__bool__"
	keyGetItem = "__getitem__"
)

// Recipe describes how a detached Handle rebuilds its real object.
// A nil Recipe is terminal.
type Recipe interface {
	Kind() RecipeKind
}

// Direct rebuilds the object from scratch with a registered constructor.
type Direct struct {
	Constructor string
	Args        []any
}

// Kind implements Recipe.
func (Direct) Kind() RecipeKind { return RecipeDirect }

// Derived rebuilds the object by replaying Steps on the parent's object.
type Derived struct {
	Parent *Handle
	Steps  []Step
}

// Kind implements Recipe.
func (Derived) Kind() RecipeKind { return RecipeDerived }

// Step is one accessor replayed by a Derived recipe: an attribute lookup,
// optionally followed by a call.
type Step struct {
	Name   string
	Call   bool
	Args   []Arg
	Kwargs map[string]Arg
}

// Arg is one bound call argument. Exactly one of Ref, Items (with List
// set) or Value is meaningful.
type Arg struct {
	// Ref is the handle of a proxy argument.
	Ref *Handle
	// List marks a sequence of arguments held in Items.
	List  bool
	Items []Arg
	// Value is a plain argument.
	Value any
}

// resolve turns a bound argument back into something the real object
// accepts: proxies become their (possibly resurrected) real objects.
func (a Arg) resolve() (any, error) {
	switch {
	case a.Ref != nil:
		return a.Ref.Get()
	case a.List:
		out := make([]any, len(a.Items))
		for i, it := range a.Items {
			v, err := it.resolve()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return a.Value, nil
	}
}

func resolveArgs(args []Arg, kwargs map[string]Arg) ([]any, map[string]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := a.resolve()
		if err != nil {
			return nil, nil, err
		}
		out[i] = v
	}
	var kw map[string]any
	if len(kwargs) > 0 {
		kw = make(map[string]any, len(kwargs))
		for k, a := range kwargs {
			v, err := a.resolve()
			if err != nil {
				return nil, nil, err
			}
			kw[k] = v
		}
	}
	return out, kw, nil
}
