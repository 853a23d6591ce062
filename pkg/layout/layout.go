package layout

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/overview/pkg/errors"
	"github.com/matzehuels/overview/pkg/tree"
)

// Strategy names a layout algorithm.
type Strategy string

const (
	StrategySpringColumn         Strategy = "spring-column"
	StrategySpringColumnExtended Strategy = "spring-column-extended"
)

// Strategies lists the available strategies in display order.
func Strategies() []Strategy {
	return []Strategy{StrategySpringColumn, StrategySpringColumnExtended}
}

// DragPhase is the stage of a pointer drag.
type DragPhase int

const (
	DragStart DragPhase = iota
	DragMove
	DragEnd
)

func (p DragPhase) String() string {
	switch p {
	case DragStart:
		return "start"
	case DragMove:
		return "move"
	case DragEnd:
		return "end"
	}
	return fmt.Sprintf("DragPhase(%d)", int(p))
}

// ParseDragPhase converts "start", "move" or "end" to a DragPhase.
func ParseDragPhase(s string) (DragPhase, bool) {
	for _, p := range []DragPhase{DragStart, DragMove, DragEnd} {
		if p.String() == s {
			return p, true
		}
	}
	return 0, false
}

// Point is a position in layout space.
type Point struct {
	X, Y float64
}

// Config holds the layout constants.
type Config struct {
	Strategy Strategy

	// LeafBound is the vertical slot of a node without children.
	LeafBound float64
	// MaxAngle bounds how steeply a link may fan out, in degrees.
	MaxAngle float64
	// MinColumnWidth is the narrowest gap between two depth columns.
	MinColumnWidth float64

	StiffnessX, StiffnessY float64
	DampingX, DampingY     float64
	// Jitter scales each acceleration by a random factor in [1-Jitter, 1+Jitter].
	Jitter float64

	// MinAlpha is the velocity under which a tick counts as settled.
	MinAlpha float64
	// CoolDown is the heat cap, in ticks.
	CoolDown int
	// Frame is the tick length the constants are tuned for.
	Frame time.Duration
	// Seed seeds the jitter source.
	Seed uint64
	// CompactLeafFactor shrinks runs of adjacent leaves in the extended strategy.
	CompactLeafFactor float64

	Logger *log.Logger
}

// DefaultConfig returns the default layout constants.
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategySpringColumn,
		LeafBound:         24,
		MaxAngle:          60,
		MinColumnWidth:    80,
		StiffnessX:        0.04,
		StiffnessY:        0.08,
		DampingX:          0.6,
		DampingY:          0.45,
		Jitter:            0.4,
		MinAlpha:          0.01,
		CoolDown:          120,
		Frame:             16 * time.Millisecond,
		Seed:              42,
		CompactLeafFactor: 0.6,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.LeafBound <= 0 {
		c.LeafBound = d.LeafBound
	}
	if c.MaxAngle <= 0 || c.MaxAngle >= 90 {
		c.MaxAngle = d.MaxAngle
	}
	if c.MinColumnWidth <= 0 {
		c.MinColumnWidth = d.MinColumnWidth
	}
	if c.StiffnessX <= 0 {
		c.StiffnessX = d.StiffnessX
	}
	if c.StiffnessY <= 0 {
		c.StiffnessY = d.StiffnessY
	}
	if c.DampingX <= 0 {
		c.DampingX = d.DampingX
	}
	if c.DampingY <= 0 {
		c.DampingY = d.DampingY
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = d.Jitter
	}
	if c.MinAlpha <= 0 {
		c.MinAlpha = d.MinAlpha
	}
	if c.CoolDown <= 0 {
		c.CoolDown = d.CoolDown
	}
	if c.Frame <= 0 {
		c.Frame = d.Frame
	}
	if c.CompactLeafFactor <= 0 || c.CompactLeafFactor > 1 {
		c.CompactLeafFactor = d.CompactLeafFactor
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Engine computes and animates node positions for any number of trees.
type Engine interface {
	tree.Observer

	// NodeDragged applies one step of the drag protocol. offset is the
	// pointer displacement since drag start in screen units.
	NodeDragged(t *tree.Tree, id tree.NodeID, phase DragPhase, offset Point, zoom float64)

	// Tick advances every hot tree by delta and rebuilds its spatial index.
	Tick(trees []*tree.Tree, delta time.Duration)

	// Position returns a node's current coordinates.
	Position(t *tree.Tree, id tree.NodeID) (Point, bool)

	// Target returns the position a node is currently springing toward.
	Target(t *tree.Tree, id tree.NodeID) (Point, bool)

	// Heat returns a tree's heat counter; zero means settled.
	Heat(t *tree.Tree) int

	// Forget drops all state held for a tree.
	Forget(t *tree.Tree)

	// Strategy reports the active strategy.
	Strategy() Strategy
}

// New builds the engine for cfg.Strategy. Zero fields in cfg take their
// default values.
func New(cfg Config) (Engine, error) {
	cfg = cfg.withDefaults()
	strategies := map[Strategy]func(Config) Engine{
		StrategySpringColumn:         func(c Config) Engine { return newSpringColumn(c, false) },
		StrategySpringColumnExtended: func(c Config) Engine { return newSpringColumn(c, true) },
	}
	build, ok := strategies[cfg.Strategy]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown layout strategy %q", cfg.Strategy)
	}
	return build(cfg), nil
}

// coord is the per-node layout state.
type coord struct {
	targetX, targetY float64
	vx, vy           float64

	// index orders siblings. New nodes take increasing values; a drag
	// replaces the values of the dragged node's siblings with their ranks.
	index float64
	// offsetX is a committed horizontal displacement (extended strategy).
	offsetX float64
	bound   float64

	pinned         bool
	startX, startY float64
}

type dragState struct {
	node   tree.NodeID
	pinned []tree.NodeID
}

// treeState is the per-tree layout state.
type treeState struct {
	coords    map[tree.NodeID]*coord
	heat      int
	dirty     bool
	columns   []float64
	maxBound  []float64
	nextIndex float64
	anchor    Point
	drag      *dragState
}

// springColumn implements both column strategies; extended switches on
// horizontal dragging and leaf compaction.
type springColumn struct {
	cfg      Config
	extended bool
	trees    map[uuid.UUID]*treeState
	rng      *rand.Rand
	logger   *log.Logger
}

func newSpringColumn(cfg Config, extended bool) *springColumn {
	return &springColumn{
		cfg:      cfg,
		extended: extended,
		trees:    make(map[uuid.UUID]*treeState),
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		logger:   cfg.Logger,
	}
}

func (e *springColumn) Strategy() Strategy {
	if e.extended {
		return StrategySpringColumnExtended
	}
	return StrategySpringColumn
}

// state returns the tree's state, creating it on first use.
func (e *springColumn) state(t *tree.Tree) *treeState {
	st, ok := e.trees[t.ID()]
	if !ok {
		st = &treeState{coords: make(map[tree.NodeID]*coord), dirty: true}
		e.trees[t.ID()] = st
	}
	return st
}

func (e *springColumn) reheat(st *treeState) {
	st.heat = e.cfg.CoolDown
}

func (e *springColumn) Position(t *tree.Tree, id tree.NodeID) (Point, bool) {
	st, ok := e.trees[t.ID()]
	if !ok {
		return Point{}, false
	}
	n, ok := t.Node(id)
	if !ok || st.coords[id] == nil {
		return Point{}, false
	}
	return Point{X: n.X, Y: n.Y}, true
}

func (e *springColumn) Target(t *tree.Tree, id tree.NodeID) (Point, bool) {
	st, ok := e.trees[t.ID()]
	if !ok {
		return Point{}, false
	}
	c := st.coords[id]
	if c == nil {
		return Point{}, false
	}
	return Point{X: c.targetX, Y: c.targetY}, true
}

func (e *springColumn) Heat(t *tree.Tree) int {
	if st, ok := e.trees[t.ID()]; ok {
		return st.heat
	}
	return 0
}

func (e *springColumn) Forget(t *tree.Tree) {
	delete(e.trees, t.ID())
}

// sortedChildren returns n's children that have coord state, in sibling order.
func sortedChildren(st *treeState, n *tree.Node) []tree.NodeID {
	out := make([]tree.NodeID, 0, len(n.Children))
	for _, c := range n.Children {
		if st.coords[c] != nil {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b tree.NodeID) int {
		ia, ib := st.coords[a].index, st.coords[b].index
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	})
	return out
}
