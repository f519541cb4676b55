package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/DIDONEproject/musif-sub000/cache"
	"github.com/DIDONEproject/musif-sub000/filecache"
	"github.com/DIDONEproject/musif-sub000/internal/config"
	"github.com/DIDONEproject/musif-sub000/internal/score"
	"github.com/DIDONEproject/musif-sub000/internal/singleflight"
	"github.com/DIDONEproject/musif-sub000/policy"
	"github.com/DIDONEproject/musif-sub000/policy/fifo"
	"github.com/DIDONEproject/musif-sub000/policy/lru"
	"github.com/DIDONEproject/musif-sub000/policy/twoq"
)

// ConstructorScore is the constructor name recorded in Direct recipes of
// score roots. Its single argument is the absolute path of the file.
const ConstructorScore = "score"

// Options configures an Extractor. Zero values are safe:
//   - nil Logger       => log.Default()
//   - nil ProxyMetrics => cache.NoopMetrics
//   - nil ReuseMetrics => cache.NoopMetrics
type Options struct {
	Config config.Config

	// Fresh ignores existing snapshots.
	Fresh bool
	// NoSave skips writing snapshots.
	NoSave bool

	Logger       *log.Logger
	ProxyMetrics cache.Metrics
	ReuseMetrics cache.Metrics
}

// Result is the outcome for one score file.
type Result struct {
	File     string   `yaml:"file"`
	Features Features `yaml:",inline"`

	// Snapshot is the file the proxy tree was saved to, if any.
	Snapshot     string      `yaml:"snapshot,omitempty"`
	SnapshotSize int64       `yaml:"-"`
	FromSnapshot bool        `yaml:"from_snapshot"`
	Stats        cache.Stats `yaml:"-"`
}

// Extractor runs feature extraction over score files. Each file gets its
// own proxy cache; parsed documents are shared through a bounded reuse
// cache. Safe for concurrent use.
type Extractor struct {
	cfg    config.Config
	opt    Options
	log    *log.Logger
	parsed atomic.Int64

	load    func(path string) (*score.Score, error)
	flights singleflight.Group[string, *score.Score]

	mu   sync.Mutex // guards docs only; parsing runs outside it
	docs *filecache.Cache[string, *score.Score]
}

// New returns an Extractor for cfg.
func New(opt Options) *Extractor {
	if opt.Logger == nil {
		opt.Logger = log.Default()
	}
	if opt.ProxyMetrics == nil {
		opt.ProxyMetrics = cache.NoopMetrics{}
	}
	if opt.ReuseMetrics == nil {
		opt.ReuseMetrics = cache.NoopMetrics{}
	}
	e := &Extractor{cfg: opt.Config, opt: opt, log: opt.Logger, load: score.Load}

	var pol policy.Policy[string, *score.Score]
	switch strings.ToLower(opt.Config.ReusePolicy) {
	case "lru":
		pol = lru.New[string, *score.Score]()
	case "2q":
		pol = twoq.ForCapacity[string, *score.Score](opt.Config.ReuseCapacity)
	default:
		pol = fifo.New[string, *score.Score]()
	}
	e.docs = filecache.New(filecache.Options[string, *score.Score]{
		Capacity: opt.Config.ReuseCapacity,
		Policy:   pol,
		Metrics:  opt.ReuseMetrics,
		OnEvict: func(path string, _ *score.Score, _ cache.EvictReason) {
			e.log.Debug("score left reuse cache", "path", path)
		},
	})
	return e
}

// Parsed returns how many score files were parsed so far.
func (e *Extractor) Parsed() int64 { return e.parsed.Load() }

// NewCache returns a proxy cache configured for scores, with the score
// constructor registered.
func (e *Extractor) NewCache() *cache.Cache {
	return cache.New(cache.Options{
		WrapPrefixes: e.cfg.WrapPrefixes,
		RawMarker:    e.cfg.RawMarker,
		Compression:  e.cfg.Compression,
		Constructors: map[string]cache.Constructor{ConstructorScore: e.construct},
		Logger:       e.log,
		Metrics:      e.opt.ProxyMetrics,
	})
}

func (e *Extractor) construct(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: want 1 argument, got %d", ConstructorScore, len(args))
	}
	path, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s: want a path, got %T", ConstructorScore, args[0])
	}

	if s, ok := e.reused(path); ok {
		return s, nil
	}
	s, err, _ := e.flights.Do(path, func() (*score.Score, error) {
		if s, ok := e.reused(path); ok {
			return s, nil
		}
		e.parsed.Add(1)
		e.log.Debug("parsing score", "path", path)
		s, err := e.load(path)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.docs.Put(path, s)
		e.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Extractor) reused(path string) (*score.Score, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.Get(path)
}

// SnapshotPath returns where the snapshot of the score at path lives. The
// name includes a digest of the path, size and modification time, so an
// edited score never matches an old snapshot.
func (e *Extractor) SnapshotPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	sum := xxhash.Sum64String(fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano()))
	base := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	return filepath.Join(e.cfg.SnapshotDir, fmt.Sprintf("%s-%016x.snap", base, sum)), nil
}

// One extracts the features of a single score, starting from its
// snapshot when one exists.
func (e *Extractor) One(path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, err
	}
	snap, err := e.SnapshotPath(abs)
	if err != nil {
		return Result{}, err
	}
	res := Result{File: abs}

	pc := e.NewCache()
	defer pc.Close()

	var root *cache.Proxy
	if !e.opt.Fresh {
		root, err = pc.LoadFile(snap)
		switch {
		case err == nil:
			res.FromSnapshot = true
			e.log.Debug("loaded snapshot", "file", snap)
		case errors.Is(err, fs.ErrNotExist):
		default:
			e.log.Warn("ignoring snapshot", "file", snap, "err", err)
		}
	}
	if root == nil {
		if root, err = pc.Root(ConstructorScore, abs); err != nil {
			return res, err
		}
	}

	if res.Features, err = Score(root); err != nil {
		return res, err
	}
	res.Stats = pc.Stats()

	if !e.opt.NoSave && (!res.FromSnapshot || res.Stats.Misses > 0) {
		if err := os.MkdirAll(e.cfg.SnapshotDir, 0o755); err != nil {
			return res, err
		}
		if err := pc.SaveFile(snap, root); err != nil {
			return res, err
		}
	}
	if info, err := os.Stat(snap); err == nil {
		res.Snapshot = snap
		res.SnapshotSize = info.Size()
	}
	root.Drop()
	return res, nil
}

// Run extracts every path with at most Config.Workers files in flight.
// Results keep the order of paths.
func (e *Extractor) Run(ctx context.Context, paths []string) ([]Result, error) {
	out := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.Workers, 1))
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := e.One(p)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			out[i] = r
			return nil
		})
	}
	return out, g.Wait()
}
