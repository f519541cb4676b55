package score

import (
	"strconv"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
)

// Rest is the pitch spelling of a rest.
const Rest = "r"

// Note is a pitched note or a rest. Pitch uses scientific notation
// ("C4", "F#5", "Bb3"); Duration is in quarter notes.
type Note struct {
	Pitch    string  `yaml:"pitch"`
	Duration float64 `yaml:"duration"`
	Lyric    string  `yaml:"lyric,omitempty"`
}

var steps = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// IsRest reports whether n is a rest.
func (n *Note) IsRest() bool { return n.Pitch == "" || strings.EqualFold(n.Pitch, Rest) }

// MIDI returns the MIDI note number, or -1 for a rest or an invalid pitch.
func (n *Note) MIDI() int {
	if n.IsRest() {
		return -1
	}
	m, err := parsePitch(n.Pitch)
	if err != nil {
		return -1
	}
	return m
}

// Name returns the pitch class spelled with sharps ("" for rests).
func (n *Note) Name() string {
	m := n.MIDI()
	if m < 0 {
		return ""
	}
	return sharpNames[m%12]
}

// Transpose returns a copy of n moved by semitones, spelled with sharps.
// Rests are returned unchanged.
func (n *Note) Transpose(semitones int) *Note {
	out := *n
	m := n.MIDI()
	if m < 0 {
		return &out
	}
	m += semitones
	if m < 0 {
		m = 0
	}
	out.Pitch = sharpNames[m%12] + strconv.Itoa(m/12-1)
	return &out
}

// Interval returns the signed distance in semitones from n to other.
func (n *Note) Interval(other *Note) (int, error) {
	if n.IsRest() || other == nil || other.IsRest() {
		return 0, platformerrors.New(platformerrors.CodeInvalidInput, "interval with a rest")
	}
	return other.MIDI() - n.MIDI(), nil
}

func parsePitch(p string) (int, error) {
	bad := func() (int, error) {
		return 0, platformerrors.WithContext(
			platformerrors.New(platformerrors.CodeInvalidInput, "invalid pitch"), "pitch", p)
	}
	if len(p) < 2 {
		return bad()
	}
	base, ok := steps[p[0]&^0x20]
	if !ok {
		return bad()
	}
	i := 1
	for ; i < len(p) && (p[i] == '#' || p[i] == 'b'); i++ {
		if p[i] == '#' {
			base++
		} else {
			base--
		}
	}
	octave, err := strconv.Atoi(p[i:])
	if err != nil {
		return bad()
	}
	return base + 12*(octave+1), nil
}
