package extract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DIDONEproject/musif-sub000/internal/config"
	"github.com/DIDONEproject/musif-sub000/internal/score"
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

var wantAria = Features{
	Title:    "Se mai senti spirarti sul volto",
	Composer: "Leonardo Vinci",
	Key:      "Eb",
	Parts: []PartFeatures{
		{Name: "Voice", Measures: 2, Notes: 4, Lowest: "Eb4", Highest: "Bb4", Ambitus: 7, Duration: 6, OpeningRepeats: 1},
		{Name: "Basso continuo", Measures: 2, Notes: 2, Lowest: "Eb2", Highest: "Bb2", Ambitus: 7, Duration: 6, OpeningRepeats: 1},
	},
}

func writeScore(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		WrapPrefixes:  []string{reflect.TypeOf(score.Score{}).PkgPath()},
		RawMarker:     "raw_",
		Compression:   1,
		ReuseCapacity: 2,
		ReusePolicy:   "fifo",
		SnapshotDir:   filepath.Join(t.TempDir(), "snapshots"),
		Workers:       2,
	}
}

func newExtractor(cfg config.Config, opts ...func(*Options)) *Extractor {
	opt := Options{Config: cfg, Logger: log.New(&bytes.Buffer{})}
	for _, f := range opts {
		f(&opt)
	}
	return New(opt)
}

// A second extractor over an unchanged score answers from the snapshot
// without parsing.
func TestExtractor_SecondRunFromSnapshot(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "vinci.yaml", aria)

	first := newExtractor(cfg)
	res, err := first.Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, wantAria, res[0].Features)
	assert.False(t, res[0].FromSnapshot)
	assert.Equal(t, int64(1), first.Parsed())
	require.NotEmpty(t, res[0].Snapshot)
	assert.FileExists(t, res[0].Snapshot)
	assert.Positive(t, res[0].SnapshotSize)

	second := newExtractor(cfg)
	res2, err := second.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, wantAria, res2[0].Features)
	assert.True(t, res2[0].FromSnapshot)
	assert.Equal(t, int64(0), second.Parsed())
	assert.Equal(t, int64(0), res2[0].Stats.Misses)
	assert.Equal(t, res[0].Snapshot, res2[0].Snapshot)
}

func TestExtractor_Fresh(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "vinci.yaml", aria)
	_, err := newExtractor(cfg).One(path)
	require.NoError(t, err)

	e := newExtractor(cfg, func(o *Options) { o.Fresh = true })
	res, err := e.One(path)
	require.NoError(t, err)
	assert.False(t, res.FromSnapshot)
	assert.Equal(t, int64(1), e.Parsed())
}

func TestExtractor_NoSave(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "vinci.yaml", aria)
	res, err := newExtractor(cfg, func(o *Options) { o.NoSave = true }).One(path)
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot)
	assert.NoDirExists(t, cfg.SnapshotDir)
}

// An edited score gets a new snapshot name.
func TestExtractor_SnapshotPathTracksContent(t *testing.T) {
	t.Parallel()

	e := newExtractor(testConfig(t))
	path := writeScore(t, t.TempDir(), "vinci.yaml", aria)
	before, err := e.SnapshotPath(path)
	require.NoError(t, err)
	assert.Equal(t, ".snap", filepath.Ext(before))

	writeScore(t, filepath.Dir(path), "vinci.yaml", aria+"\n# revised\n")
	after, err := e.SnapshotPath(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

// The same file extracted twice in one run is parsed once.
func TestExtractor_ReusesParsedScores(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "vinci.yaml", aria)
	e := newExtractor(cfg, func(o *Options) { o.NoSave = true })

	res, err := e.Run(context.Background(), []string{path, path, path})
	require.NoError(t, err)
	for _, r := range res {
		assert.Equal(t, wantAria, r.Features)
	}
	assert.Equal(t, int64(1), e.Parsed())
}

// Different files parse in parallel; the same file still parses once.
func TestExtractor_ParsesInParallel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	dir := t.TempDir()
	first := writeScore(t, dir, "vinci.yaml", aria)
	second := writeScore(t, dir, "hasse.yaml", aria)
	e := newExtractor(cfg, func(o *Options) { o.NoSave = true })

	var entered atomic.Int32
	both := make(chan struct{})
	e.load = func(path string) (*score.Score, error) {
		if entered.Add(1) == 2 {
			close(both)
		}
		select {
		case <-both:
		case <-time.After(5 * time.Second):
			return nil, errors.New("parse of " + filepath.Base(path) + " never overlapped another")
		}
		return score.Load(path)
	}

	res, err := e.Run(context.Background(), []string{first, second, first, second})
	require.NoError(t, err)
	for _, r := range res {
		assert.Equal(t, wantAria, r.Features)
	}
	assert.Equal(t, int64(2), e.Parsed())
	assert.Equal(t, int32(2), entered.Load())
}

func TestExtractor_Errors(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	dir := t.TempDir()
	good := writeScore(t, dir, "good.yaml", aria)
	bad := writeScore(t, dir, "bad.yaml", "parts:\n  - name: V\n    measures:\n      - notes: [{pitch: H9}]\n")

	_, err := newExtractor(cfg).Run(context.Background(), []string{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")

	_, err = newExtractor(cfg).One(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = newExtractor(cfg).construct()
	assert.Error(t, err)
}

// A corrupt snapshot is ignored and replaced.
func TestExtractor_CorruptSnapshot(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "vinci.yaml", aria)
	e := newExtractor(cfg)
	snap, err := e.SnapshotPath(path)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(cfg.SnapshotDir, 0o755))
	require.NoError(t, os.WriteFile(snap, []byte("not a snapshot"), 0o600))

	res, err := e.One(path)
	require.NoError(t, err)
	assert.False(t, res.FromSnapshot)
	assert.Equal(t, wantAria, res.Features)

	again, err := newExtractor(cfg).One(path)
	require.NoError(t, err)
	assert.True(t, again.FromSnapshot)
}

func TestDump(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "vinci.yaml", aria)
	res, err := newExtractor(cfg).One(path)
	require.NoError(t, err)

	e := newExtractor(cfg)
	root, err := e.NewCache().LoadFile(res.Snapshot)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, root, DumpOptions{MaxDepth: 3, MaxItems: 1}))
	out := buf.String()
	assert.Contains(t, out, "recipe=direct")
	assert.Contains(t, out, "Title = Se mai senti spirarti sul volto")
	assert.Contains(t, out, "Parts: [2]")
	assert.Contains(t, out, "Name = Voice")
	assert.Contains(t, out, "... 1 more")
	assert.NotContains(t, out, "Basso continuo")
	assert.False(t, root.Handle().Live())
	assert.Equal(t, int64(0), e.Parsed())
}
