// Package extract computes score features through the proxy cache and
// keeps one snapshot per score file, so that a second run over unchanged
// scores never parses them.
package extract

import (
	"github.com/DIDONEproject/musif-sub000/cache"
)

// Features is what one extraction run reports for a score.
type Features struct {
	Title    string         `yaml:"title"`
	Composer string         `yaml:"composer,omitempty"`
	Key      string         `yaml:"key,omitempty"`
	Parts    []PartFeatures `yaml:"parts"`
}

// PartFeatures describes one part.
type PartFeatures struct {
	Name     string  `yaml:"name"`
	Measures int     `yaml:"measures"`
	Notes    int     `yaml:"notes"`
	Lowest   string  `yaml:"lowest,omitempty"`
	Highest  string  `yaml:"highest,omitempty"`
	Ambitus  int     `yaml:"ambitus"`
	Duration float64 `yaml:"duration"`
	// OpeningRepeats counts sounding notes at the pitch of the first one.
	OpeningRepeats int `yaml:"opening_repeats"`
}

// Score reads the features of the document behind root. Every access goes
// through the proxy, so a root loaded from a snapshot answers without its
// real object as long as the same features were computed before.
func Score(root *cache.Proxy) (Features, error) {
	var f Features
	var err error
	if f.Title, err = attrString(root, "Title"); err != nil {
		return f, err
	}
	if f.Composer, err = attrString(root, "Composer"); err != nil {
		return f, err
	}
	if f.Key, err = attrString(root, "Key"); err != nil {
		return f, err
	}

	parts, err := root.Attr("Parts")
	if err != nil {
		return f, err
	}
	for _, pv := range parts.Items() {
		if pv.Kind() != cache.KindNode {
			continue
		}
		pf, err := part(pv.Node())
		if err != nil {
			return f, err
		}
		f.Parts = append(f.Parts, pf)
	}
	return f, nil
}

func part(p *cache.Proxy) (PartFeatures, error) {
	var pf PartFeatures
	var err error
	if pf.Name, err = attrString(p, "Name"); err != nil {
		return pf, err
	}
	if pf.Measures, err = p.Len(); err != nil {
		return pf, err
	}

	sounding, err := p.Call("Sounding")
	if err != nil {
		return pf, err
	}
	notes := sounding.Items()
	pf.Notes = len(notes)
	if len(notes) > 0 {
		n, err := p.Call("CountPitch", notes[0].Node())
		if err != nil {
			return pf, err
		}
		pf.OpeningRepeats, _ = cache.As[int](n)
	}

	d, err := p.Call("Duration")
	if err != nil {
		return pf, err
	}
	pf.Duration, _ = cache.As[float64](d)

	amb, err := p.Call("Ambitus")
	if err != nil || amb.IsNone() {
		return pf, err
	}
	a := amb.Node()
	w, err := a.Call("Semitones")
	if err != nil {
		return pf, err
	}
	pf.Ambitus, _ = cache.As[int](w)
	if pf.Lowest, err = notePitch(a, "Low"); err != nil {
		return pf, err
	}
	if pf.Highest, err = notePitch(a, "High"); err != nil {
		return pf, err
	}
	return pf, nil
}

func attrString(p *cache.Proxy, name string) (string, error) {
	v, err := p.Attr(name)
	if err != nil {
		return "", err
	}
	s, _ := cache.As[string](v)
	return s, nil
}

func notePitch(ambitus *cache.Proxy, field string) (string, error) {
	n, err := ambitus.Attr(field)
	if err != nil || n.IsNone() {
		return "", err
	}
	return attrString(n.Node(), "Pitch")
}
