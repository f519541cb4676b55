package score

import (
	"os"
	"path/filepath"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aria = `
title: Se mai senti spirarti sul volto
composer: Leonardo Vinci
key: Eb
meter: 3/4
parts:
  - name: Voice
    abbreviation: V
    measures:
      - number: 1
        notes:
          - {pitch: Eb4, duration: 1, lyric: Se}
          - {pitch: G4, duration: 1, lyric: mai}
          - {pitch: Bb4, duration: 1}
      - number: 2
        notes:
          - {pitch: r, duration: 1}
          - {pitch: G4, duration: 2}
  - name: Basso continuo
    abbreviation: Bc
    measures:
      - number: 1
        notes:
          - {pitch: Eb2, duration: 3}
      - number: 2
        notes:
          - {pitch: Bb2, duration: 3}
`

func TestParse(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(aria))
	require.NoError(t, err)

	assert.Equal(t, "Leonardo Vinci", s.Composer)
	assert.Equal(t, []string{"Voice", "Basso continuo"}, s.PartNames())
	require.NotNil(t, s.Part("bc"))
	assert.Nil(t, s.Part("Violin"))

	v := s.Part("Voice")
	assert.Equal(t, 2, v.Len())
	assert.Len(t, v.Notes(), 5)
	assert.Len(t, v.Sounding(), 4)
	assert.InDelta(t, 6.0, v.Duration(), 1e-9)
	assert.Len(t, v.Range(2, 5), 1)
}

func TestPart_AmbitusAndCount(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(aria))
	require.NoError(t, err)
	v := s.Part("Voice")

	a := v.Ambitus()
	require.NotNil(t, a)
	assert.Equal(t, "Eb4", a.Low.Pitch)
	assert.Equal(t, "Bb4", a.High.Pitch)
	assert.Equal(t, 7, a.Semitones())

	assert.Equal(t, 2, v.CountPitch(&Note{Pitch: "G4"}))
	assert.Equal(t, 0, v.CountPitch(&Note{Pitch: Rest}))
	assert.Nil(t, (&Part{}).Ambitus())
}

func TestNote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pitch string
		midi  int
		name  string
	}{
		{"C4", 60, "C"},
		{"c4", 60, "C"},
		{"Eb4", 63, "D#"},
		{"F#5", 78, "F#"},
		{"Bb2", 46, "A#"},
		{"r", -1, ""},
	}
	for _, tt := range tests {
		n := &Note{Pitch: tt.pitch}
		assert.Equal(t, tt.midi, n.MIDI(), tt.pitch)
		assert.Equal(t, tt.name, n.Name(), tt.pitch)
	}

	up := (&Note{Pitch: "Bb4", Duration: 2}).Transpose(3)
	assert.Equal(t, "C#5", up.Pitch)
	assert.InDelta(t, 2.0, up.Duration, 0)

	d, err := (&Note{Pitch: "C4"}).Interval(&Note{Pitch: "G4"})
	require.NoError(t, err)
	assert.Equal(t, 7, d)

	_, err = (&Note{Pitch: "C4"}).Interval(&Note{Pitch: Rest})
	assert.Error(t, err)
}

func TestParse_InvalidPitch(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("parts:\n  - name: V\n    measures:\n      - number: 4\n        notes:\n          - {pitch: H4}\n"))
	require.Error(t, err)
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "aria.yaml")
	require.NoError(t, os.WriteFile(path, []byte(aria), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, platformerrors.CodeNotFound, platformerrors.GetCode(err))
}
