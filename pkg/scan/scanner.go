package scan

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/overview/pkg/metric"
	"github.com/matzehuels/overview/pkg/observability"
)

// DefaultMaxChildren is the subfolder count above which a folder becomes a
// collection.
const DefaultMaxChildren = 256

// Options configures a Scanner.
type Options struct {
	// MaxChildren is the subfolder count above which a folder is reported
	// as a collection instead of being descended into.
	MaxChildren int
	// FollowSymlinks measures the targets of symlinked files. Symlinked
	// folders are never descended into.
	FollowSymlinks bool
	// Ignore lists folder names that are skipped entirely.
	Ignore []string
	// Workers bounds the goroutines used to summarize collections.
	Workers int
	Logger  *log.Logger
}

// Stats summarizes a walk.
type Stats struct {
	Dirs        int
	Files       int
	Bytes       int64
	Collections int
	Duration    time.Duration
}

// Scanner walks directories and reports them as messages.
type Scanner struct {
	opts   Options
	logger *log.Logger
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	if opts.MaxChildren <= 0 {
		opts.MaxChildren = DefaultMaxChildren
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Scanner{opts: opts, logger: opts.Logger}
}

// Scan walks root and emits messages for every folder below it, parents
// before children. The root folder itself is reported with the empty path.
func (s *Scanner) Scan(ctx context.Context, root string, emit func(...Message)) (Stats, error) {
	return s.ScanFrom(ctx, root, "", emit)
}

// ScanFrom walks the folder rel below root and emits messages with paths
// relative to root. A non-empty rel is reported with OpAdd before its
// contents.
func (s *Scanner) ScanFrom(ctx context.Context, root, rel string, emit func(...Message)) (Stats, error) {
	start := time.Now()
	var st Stats
	base := filepath.Join(root, filepath.FromSlash(rel))

	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == base {
				return err
			}
			s.logger.Debug("skipping unreadable entry", "path", p, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != base && s.ignored(d.Name()) {
			return fs.SkipDir
		}

		relPath := relative(root, p)
		entries, err := os.ReadDir(p)
		if err != nil {
			s.logger.Debug("skipping unreadable folder", "path", p, "err", err)
			return fs.SkipDir
		}

		subdirs := 0
		for _, e := range entries {
			if e.IsDir() && !s.ignored(e.Name()) {
				subdirs++
			}
		}

		if relPath != "" && subdirs > s.opts.MaxChildren {
			sum, err := s.Summarize(ctx, p)
			if err != nil {
				return err
			}
			emit(
				Message{Op: OpCollection, Path: relPath, ChildCount: subdirs, Depth: sum.Depth},
				Message{Op: OpMetrics, Path: relPath, Metrics: sum.Metrics},
			)
			st.Dirs++
			st.Collections++
			st.Files += sum.Files
			st.Bytes += sum.Bytes
			return fs.SkipDir
		}

		own := s.measure(p, entries)
		if relPath != "" {
			emit(Message{Op: OpAdd, Path: relPath})
		}
		emit(Message{Op: OpMetrics, Path: relPath, Metrics: own.set()})
		st.Dirs++
		st.Files += own.files
		st.Bytes += own.bytes
		return nil
	})

	st.Duration = time.Since(start)
	observability.Scan().OnScanComplete(ctx, root, st.Dirs, st.Duration, err)
	if err != nil {
		return st, err
	}
	s.logger.Debug("scan complete", "root", root, "rel", rel, "dirs", st.Dirs, "files", st.Files, "duration", st.Duration)
	return st, nil
}

// Measure returns the own metrics of a single folder.
func (s *Scanner) Measure(dir string) (metric.Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	return s.measure(dir, entries).set(), nil
}

func (s *Scanner) ignored(name string) bool {
	return slices.Contains(s.opts.Ignore, name)
}

// tally accumulates file measurements.
type tally struct {
	files    int
	bytes    int64
	mtimeSum float64
	types    map[string]uint64
}

func newTally() *tally {
	return &tally{types: map[string]uint64{}}
}

func (t *tally) add(name string, info fs.FileInfo) {
	t.files++
	t.bytes += info.Size()
	t.mtimeSum += float64(info.ModTime().Unix())
	t.types[extension(name)]++
}

func (t *tally) merge(o *tally) {
	t.files += o.files
	t.bytes += o.bytes
	t.mtimeSum += o.mtimeSum
	for k, v := range o.types {
		t.types[k] += v
	}
}

func (t *tally) set() metric.Set {
	median := &metric.Median{}
	if t.files > 0 {
		median.Mean = math.Floor(t.mtimeSum / float64(t.files))
		median.Count = uint32(min(uint64(t.files), math.MaxUint32))
	}
	return metric.Set{
		metric.KindSize:         &metric.Sum{S: float64(t.bytes)},
		metric.KindQuantity:     &metric.Sum{S: float64(t.files)},
		metric.KindLastModified: median,
		metric.KindFileTypes:    &metric.Histogram{Counts: t.types},
	}
}

func (s *Scanner) measure(dir string, entries []fs.DirEntry) *tally {
	t := newTally()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := s.info(dir, e)
		if err != nil {
			continue
		}
		t.add(e.Name(), info)
	}
	return t
}

func (s *Scanner) info(dir string, e fs.DirEntry) (fs.FileInfo, error) {
	if e.Type()&fs.ModeSymlink != 0 && s.opts.FollowSymlinks {
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil || info.IsDir() {
			return nil, fs.ErrInvalid
		}
		return info, nil
	}
	return e.Info()
}

// Summary is the measurement of a whole subtree.
type Summary struct {
	Metrics metric.Set
	Files   int
	Bytes   int64
	Depth   int
}

// Summarize measures every file below dir in parallel, bounded by
// Options.Workers. Depth is the number of folder levels below dir.
func (s *Scanner) Summarize(ctx context.Context, dir string) (Summary, error) {
	total := newTally()
	var mu sync.Mutex
	maxDepth := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	var walk func(p string, depth int) error
	walk = func(p string, depth int) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			s.logger.Debug("skipping unreadable folder", "path", p, "err", err)
			return nil
		}
		local := s.measure(p, entries)
		mu.Lock()
		total.merge(local)
		maxDepth = max(maxDepth, depth)
		mu.Unlock()

		for _, e := range entries {
			if !e.IsDir() || s.ignored(e.Name()) {
				continue
			}
			child := filepath.Join(p, e.Name())
			// Inline when the pool is full.
			if !g.TryGo(func() error { return walk(child, depth+1) }) {
				if err := walk(child, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	g.Go(func() error { return walk(dir, 0) })
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Summary{Metrics: total.set(), Files: total.files, Bytes: total.bytes, Depth: maxDepth}, nil
}

// relative returns p relative to root in slash form, "" for root itself.
func relative(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// extension returns the lower-cased file extension, or "(none)".
func extension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || ext == name {
		return "(none)"
	}
	return ext
}
