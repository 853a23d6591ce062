package scan

import (
	"fmt"

	"github.com/matzehuels/overview/pkg/metric"
)

// Op is the kind of change a Message carries.
type Op int

const (
	// OpAdd reports a folder.
	OpAdd Op = iota
	// OpCollection reports a folder shown as a collection placeholder.
	OpCollection
	// OpMetrics carries a folder's own metrics.
	OpMetrics
	// OpRemove reports a folder that disappeared.
	OpRemove
	// OpRename reports a folder that moved from Path to NewPath.
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpCollection:
		return "collection"
	case OpMetrics:
		return "metrics"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Message is one observation from a scanner or watcher.
type Message struct {
	Op   Op
	Path string
	// NewPath is set for OpRename.
	NewPath string
	// ChildCount and Depth describe the elided subtree of an OpCollection.
	ChildCount int
	Depth      int
	// Metrics is set for OpMetrics.
	Metrics metric.Set
}
