package overview

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/overview/pkg/config"
	"github.com/matzehuels/overview/pkg/errors"
	"github.com/matzehuels/overview/pkg/layout"
	"github.com/matzehuels/overview/pkg/observability"
	"github.com/matzehuels/overview/pkg/scan"
	"github.com/matzehuels/overview/pkg/snapshot"
	"github.com/matzehuels/overview/pkg/tree"
)

// Options configures an Overview. Zero values take defaults.
type Options struct {
	// Config supplies layout, scan and drain settings. The zero value means
	// config.Default().
	Config *config.Config
	// Logger defaults to log.Default().
	Logger *log.Logger
	// Listener additionally receives every tree's presentation changes.
	Listener tree.Listener
}

// Overview is the set of open trees and the machinery that grows and lays
// them out. Methods that touch trees are not safe for concurrent use; hold
// Lock while calling them from more than one goroutine. Enqueue is the
// exception and may be called from anywhere.
type Overview struct {
	mu sync.Mutex

	cfg     config.Config
	logger  *log.Logger
	engine  layout.Engine
	scanner *scan.Scanner

	trees []*tree.Tree

	qmu    sync.RWMutex
	queues map[uuid.UUID]*scan.Queue

	changes *changeListener
}

// New builds an overview with an engine for the configured strategy.
func New(opts Options) (*Overview, error) {
	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	engine, err := layout.New(cfg.Layout.Engine(logger))
	if err != nil {
		return nil, err
	}

	return &Overview{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		scanner: scan.New(scan.Options{
			MaxChildren:    cfg.Scan.MaxChildren,
			FollowSymlinks: cfg.Scan.FollowSymlinks,
			Ignore:         cfg.Scan.Ignore,
			Logger:         logger,
		}),
		queues:  make(map[uuid.UUID]*scan.Queue),
		changes: &changeListener{next: opts.Listener},
	}, nil
}

// Config returns the active configuration.
func (o *Overview) Config() config.Config { return o.cfg }

// Engine returns the shared layout engine.
func (o *Overview) Engine() layout.Engine { return o.engine }

// Scanner returns the scanner used by Scan and Watch.
func (o *Overview) Scanner() *scan.Scanner { return o.scanner }

// Lock acquires the tree mutex.
func (o *Overview) Lock() { o.mu.Lock() }

// Unlock releases the tree mutex.
func (o *Overview) Unlock() { o.mu.Unlock() }

func (o *Overview) treeOptions() tree.Options {
	return tree.Options{
		Observer:  o.engine,
		Listener:  o.changes,
		Logger:    o.logger,
		HitRadius: o.cfg.Layout.HitRadius,
	}
}

// Open creates an empty tree for the folder at path.
func (o *Overview) Open(path string) (*tree.Tree, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	t := tree.New(abs, o.treeOptions())
	o.register(t)
	o.logger.Debug("opened tree", "path", abs, "id", t.ID())
	return t, nil
}

// Load rebuilds a tree from a snapshot and lays it out from scratch.
func (o *Overview) Load(doc snapshot.Document) (*tree.Tree, error) {
	t, err := snapshot.Load(doc, o.treeOptions())
	if err != nil {
		return nil, err
	}
	o.register(t)
	o.logger.Debug("loaded tree", "path", doc.Path, "nodes", t.Len())
	return t, nil
}

func (o *Overview) register(t *tree.Tree) {
	o.trees = append(o.trees, t)
	o.qmu.Lock()
	o.queues[t.ID()] = scan.NewQueue()
	o.qmu.Unlock()
}

// Close drops a tree, its queue, and the engine's state for it.
func (o *Overview) Close(id uuid.UUID) bool {
	for i, t := range o.trees {
		if t.ID() != id {
			continue
		}
		o.engine.Forget(t)
		o.trees = append(o.trees[:i], o.trees[i+1:]...)
		o.qmu.Lock()
		delete(o.queues, id)
		o.qmu.Unlock()
		return true
	}
	return false
}

// Trees returns the open trees in opening order.
func (o *Overview) Trees() []*tree.Tree { return o.trees }

// Tree looks up an open tree.
func (o *Overview) Tree(id uuid.UUID) (*tree.Tree, bool) {
	for _, t := range o.trees {
		if t.ID() == id {
			return t, true
		}
	}
	return nil, false
}

// Enqueue buffers scanner messages for a tree. It is safe for concurrent use.
func (o *Overview) Enqueue(id uuid.UUID, msgs ...scan.Message) error {
	o.qmu.RLock()
	q, ok := o.queues[id]
	o.qmu.RUnlock()
	if !ok {
		return errors.New(errors.ErrCodeTreeNotFound, "no open tree %s", id)
	}
	q.Push(msgs...)
	return nil
}

// Pending returns the number of queued messages across all trees.
func (o *Overview) Pending() int {
	o.qmu.RLock()
	defer o.qmu.RUnlock()
	n := 0
	for _, q := range o.queues {
		n += q.Len()
	}
	return n
}

// Drain applies up to one batch of queued messages to each tree and returns
// how many messages were applied.
func (o *Overview) Drain() int {
	total := 0
	for _, t := range o.trees {
		total += o.drainTree(t, o.cfg.Drain.BatchSize)
	}
	return total
}

func (o *Overview) drainTree(t *tree.Tree, limit int) int {
	o.qmu.RLock()
	q := o.queues[t.ID()]
	o.qmu.RUnlock()
	if q == nil {
		return 0
	}
	msgs := q.Pop(limit)
	if len(msgs) == 0 {
		return 0
	}
	res := scan.Apply(t, msgs)
	observability.Scan().OnScanBatch(context.Background(), t.Path(), len(msgs))
	o.logger.Debug("drained batch",
		"tree", filepath.Base(t.Path()),
		"messages", len(msgs),
		"created", res.Created,
		"removed", res.Removed,
		"renamed", res.Renamed,
		"metrics", res.Metrics)
	return len(msgs)
}

// Frame advances the layout of every tree by delta.
func (o *Overview) Frame(delta time.Duration) {
	o.engine.Tick(o.trees, delta)
}

// Hot reports whether any tree is still moving.
func (o *Overview) Hot() bool {
	for _, t := range o.trees {
		if o.engine.Heat(t) > 0 {
			return true
		}
	}
	return false
}

// Settle drains every queue completely and then ticks until all trees are
// cold or maxFrames frames have run. It returns the number of frames.
func (o *Overview) Settle(maxFrames int) int {
	for _, t := range o.trees {
		for o.drainTree(t, o.cfg.Drain.BatchSize) > 0 {
		}
	}
	frame := time.Duration(o.cfg.Layout.Frame)
	n := 0
	for n < maxFrames && o.Hot() {
		o.Frame(frame)
		n++
	}
	return n
}

// Changed reports whether any tree's presentation changed since the last
// call.
func (o *Overview) Changed() bool { return o.changes.take() }

// Run drains queues on the drain interval and ticks the engine on the frame
// interval until ctx is done. Each step holds the tree mutex.
func (o *Overview) Run(ctx context.Context) error {
	drain := time.NewTicker(time.Duration(o.cfg.Drain.Interval))
	defer drain.Stop()
	frame := time.NewTicker(time.Duration(o.cfg.Layout.Frame))
	defer frame.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-drain.C:
			o.mu.Lock()
			o.Drain()
			o.mu.Unlock()
		case now := <-frame.C:
			o.mu.Lock()
			o.Frame(now.Sub(last))
			o.mu.Unlock()
			last = now
		}
	}
}

// Scan walks the tree's folder and queues what it finds.
func (o *Overview) Scan(ctx context.Context, t *tree.Tree) (scan.Stats, error) {
	id := t.ID()
	return o.scanner.Scan(ctx, t.Path(), func(msgs ...scan.Message) {
		_ = o.Enqueue(id, msgs...)
	})
}

// Watch queues changes under the tree's folder until ctx is done.
func (o *Overview) Watch(ctx context.Context, t *tree.Tree) error {
	id := t.ID()
	w := scan.NewWatcher(t.Path(), o.scanner, time.Duration(o.cfg.Scan.Debounce))
	return w.Watch(ctx, func(msgs ...scan.Message) {
		_ = o.Enqueue(id, msgs...)
	})
}

// changeListener records that presentation state needs refreshing.
type changeListener struct {
	mu    sync.Mutex
	dirty bool
	next  tree.Listener
}

func (c *changeListener) mark() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

func (c *changeListener) take() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.dirty
	c.dirty = false
	return d
}

func (c *changeListener) NodeAdded(t *tree.Tree, id tree.NodeID) {
	c.mark()
	if c.next != nil {
		c.next.NodeAdded(t, id)
	}
}

func (c *changeListener) NodesAdded(t *tree.Tree, ids []tree.NodeID) {
	c.mark()
	if c.next != nil {
		c.next.NodesAdded(t, ids)
	}
}

func (c *changeListener) NodesUpdated(t *tree.Tree) {
	c.mark()
	if c.next != nil {
		c.next.NodesUpdated(t)
	}
}

func (c *changeListener) FeaturesUpdated(t *tree.Tree) {
	c.mark()
	if c.next != nil {
		c.next.FeaturesUpdated(t)
	}
}
