// Package score is a small parsed-document model for vocal scores stored
// as YAML. It is the object graph the extraction tools put behind proxies:
// parsing is comparatively expensive, navigation is cheap but repeated.
package score

import (
	"os"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"
)

// Score is a parsed document.
type Score struct {
	Title    string  `yaml:"title"`
	Composer string  `yaml:"composer"`
	Key      string  `yaml:"key"`
	Meter    string  `yaml:"meter"`
	Parts    []*Part `yaml:"parts"`

	path string
}

// Part is one voice or instrument: a sequence of measures.
type Part struct {
	Name     string     `yaml:"name"`
	Abbrev   string     `yaml:"abbreviation"`
	Measures []*Measure `yaml:"measures"`
}

// Measure holds the notes of one bar.
type Measure struct {
	Number int     `yaml:"number"`
	Notes  []*Note `yaml:"notes"`
}

// Load reads and parses the score at path.
func Load(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeNotFound, "read score")
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s.path = path
	return s, nil
}

// Parse decodes a score and validates every pitch.
func Parse(data []byte) (*Score, error) {
	var s Score
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "decode score")
	}
	for _, p := range s.Parts {
		for _, m := range p.Measures {
			for _, n := range m.Notes {
				if n.IsRest() {
					continue
				}
				if _, err := parsePitch(n.Pitch); err != nil {
					return nil, platformerrors.WithContextMap(err, map[string]interface{}{
						"part":    p.Name,
						"measure": m.Number,
					})
				}
			}
		}
	}
	return &s, nil
}

// Path returns the file the score was loaded from ("" for Parse).
func (s *Score) Path() string { return s.path }

// Part returns the part with the given name or abbreviation, or nil.
func (s *Score) Part(name string) *Part {
	for _, p := range s.Parts {
		if strings.EqualFold(p.Name, name) || strings.EqualFold(p.Abbrev, name) {
			return p
		}
	}
	return nil
}

// PartNames lists part names in score order.
func (s *Score) PartNames() []string {
	out := make([]string, len(s.Parts))
	for i, p := range s.Parts {
		out[i] = p.Name
	}
	return out
}

// Len returns the number of measures.
func (p *Part) Len() int { return len(p.Measures) }

// At returns measure i.
func (p *Part) At(i int) any { return p.Measures[i] }

// Notes returns every note and rest of the part in order.
func (p *Part) Notes() []*Note {
	var out []*Note
	for _, m := range p.Measures {
		out = append(out, m.Notes...)
	}
	return out
}

// Sounding returns the part's notes without rests.
func (p *Part) Sounding() []*Note {
	var out []*Note
	for _, n := range p.Notes() {
		if !n.IsRest() {
			out = append(out, n)
		}
	}
	return out
}

// Ambitus returns the range of the part, or nil when it has no sounding
// notes.
func (p *Part) Ambitus() *Ambitus {
	var a *Ambitus
	for _, n := range p.Sounding() {
		if a == nil {
			a = &Ambitus{Low: n, High: n}
			continue
		}
		if n.MIDI() < a.Low.MIDI() {
			a.Low = n
		}
		if n.MIDI() > a.High.MIDI() {
			a.High = n
		}
	}
	return a
}

// CountPitch counts sounding notes with the same MIDI number as n.
func (p *Part) CountPitch(n *Note) int {
	if n == nil || n.IsRest() {
		return 0
	}
	want := n.MIDI()
	count := 0
	for _, x := range p.Sounding() {
		if x.MIDI() == want {
			count++
		}
	}
	return count
}

// Duration sums note and rest durations, in quarter notes.
func (p *Part) Duration() float64 {
	var d float64
	for _, n := range p.Notes() {
		d += n.Duration
	}
	return d
}

// Range returns measures numbered from..to inclusive.
func (p *Part) Range(from, to int) []*Measure {
	var out []*Measure
	for _, m := range p.Measures {
		if m.Number >= from && m.Number <= to {
			out = append(out, m)
		}
	}
	return out
}

// Ambitus is the lowest and highest sounding note of a part.
type Ambitus struct {
	Low  *Note
	High *Note
}

// Semitones returns the width of the range.
func (a *Ambitus) Semitones() int { return a.High.MIDI() - a.Low.MIDI() }
