package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/overview/pkg/observability"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// end before reporting it.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changes below a root directory as messages.
//
// Events are collected until no new event arrived for the debounce
// interval. A watched folder removed and a folder created in the same parent
// within one burst are reported as a rename, followed by a scan of the new
// folder. Other created folders are scanned, removed ones reported as
// OpRemove, and folders whose files changed are measured again. Removed files
// only cause their parent to be measured again.
type Watcher struct {
	root     string
	scanner  *Scanner
	debounce time.Duration
	logger   *log.Logger
	fw       *fsnotify.Watcher
	// dirs holds every folder currently watched.
	dirs map[string]bool
}

// NewWatcher creates a watcher for root. Ignore rules and measurement come
// from s.
func NewWatcher(root string, s *Scanner, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{root: root, scanner: s, debounce: debounce, logger: s.logger, dirs: map[string]bool{}}
}

// Watch opens the watcher and runs it until ctx is done.
func (w *Watcher) Watch(ctx context.Context, emit func(...Message)) error {
	if err := w.Open(); err != nil {
		return err
	}
	return w.Run(ctx, emit)
}

// Open registers watches for root and every folder below it. Changes made
// after Open returns are reported by Run.
func (w *Watcher) Open() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fw = fw
	w.addTree(w.root)
	return nil
}

// Run reports batches of changes until ctx is done. It closes the watcher
// on return.
func (w *Watcher) Run(ctx context.Context, emit func(...Message)) error {
	if w.fw == nil {
		if err := w.Open(); err != nil {
			return err
		}
	}
	defer w.fw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	p := newPending()
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			observability.Scan().OnWatchEvent(ctx, w.root, ev.Op.String())
			p.record(ev)
			timer.Reset(w.debounce)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "root", w.root, "err", err)

		case <-timer.C:
			if msgs := w.flush(ctx, p); len(msgs) > 0 {
				emit(msgs...)
			}
			p = newPending()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pending collects one burst of events.
type pending struct {
	created []string
	removed []string
	touched map[string]struct{}
}

func newPending() *pending {
	return &pending{touched: map[string]struct{}{}}
}

func (p *pending) record(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		if !slices.Contains(p.created, ev.Name) {
			p.created = append(p.created, ev.Name)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if !slices.Contains(p.removed, ev.Name) {
			p.removed = append(p.removed, ev.Name)
		}
	case !ev.Has(fsnotify.Write):
		return
	}
	p.touched[filepath.Dir(ev.Name)] = struct{}{}
}

func (w *Watcher) flush(ctx context.Context, p *pending) []Message {
	var msgs []Message
	emit := func(m ...Message) { msgs = append(msgs, m...) }
	scanned := map[string]bool{}

	// Pair removals with creations in the same parent.
	created := slices.Clone(p.created)
	for _, old := range p.removed {
		if exists(old) || !w.dirs[old] {
			continue
		}
		w.forget(old)
		rel := relative(w.root, old)
		if rel == "" || w.ignoredPath(rel) {
			continue
		}
		i := slices.IndexFunc(created, func(c string) bool {
			return filepath.Dir(c) == filepath.Dir(old) && isDir(c)
		})
		if i < 0 {
			emit(Message{Op: OpRemove, Path: rel})
			continue
		}
		newPath := created[i]
		created = slices.Delete(created, i, i+1)
		newRel := relative(w.root, newPath)
		emit(Message{Op: OpRename, Path: rel, NewPath: newRel})
		w.addTree(newPath)
		// Adds nothing after a successful rename, but creates the folder when
		// the rename was refused, and measures the moved subtree.
		if _, err := w.scanner.ScanFrom(ctx, w.root, newRel, emit); err != nil {
			w.logger.Warn("rescan failed", "path", newRel, "err", err)
			continue
		}
		scanned[newPath] = true
	}

	for _, c := range created {
		rel := relative(w.root, c)
		if rel == "" || !isDir(c) || w.ignoredPath(rel) {
			continue
		}
		w.addTree(c)
		if _, err := w.scanner.ScanFrom(ctx, w.root, rel, emit); err != nil {
			w.logger.Warn("rescan failed", "path", rel, "err", err)
			continue
		}
		scanned[c] = true
	}

	dirs := make([]string, 0, len(p.touched))
	for d := range p.touched {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	for _, d := range dirs {
		if scanned[d] || !isDir(d) {
			continue
		}
		rel := relative(w.root, d)
		if strings.HasPrefix(rel, "..") || w.ignoredPath(rel) {
			continue
		}
		set, err := w.scanner.Measure(d)
		if err != nil {
			continue
		}
		emit(Message{Op: OpMetrics, Path: rel, Metrics: set})
	}
	return msgs
}

// addTree watches dir and every non-ignored folder below it.
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != w.root && w.scanner.ignored(d.Name()) {
			return fs.SkipDir
		}
		if err := w.fw.Add(p); err != nil {
			w.logger.Debug("cannot watch folder", "path", p, "err", err)
			return nil
		}
		w.dirs[p] = true
		return nil
	})
}

// forget drops dir and every folder below it from the watched set.
func (w *Watcher) forget(dir string) {
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
}

func (w *Watcher) ignoredPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if w.scanner.ignored(seg) {
			return true
		}
	}
	return false
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
