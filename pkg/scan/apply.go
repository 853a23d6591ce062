package scan

import "github.com/matzehuels/overview/pkg/tree"

// Applied counts what a batch changed.
type Applied struct {
	Created int
	Removed int
	Renamed int
	Metrics int
}

// Apply translates a batch of messages into tree mutations. Metric messages
// are collected and applied with a single SetMetricsBatch so the tree
// notifies once; pending metrics are flushed before any structural change
// that could affect their paths.
func Apply(t *tree.Tree, msgs []Message) Applied {
	var res Applied
	var updates []tree.MetricUpdate
	flush := func() {
		if len(updates) > 0 {
			res.Metrics += t.SetMetricsBatch(updates)
			updates = updates[:0]
		}
	}

	for _, m := range msgs {
		switch m.Op {
		case OpAdd:
			res.Created += len(t.AddByPath(m.Path, nil))
		case OpCollection:
			coll := tree.Collection{Size: m.ChildCount, Depth: m.Depth}
			if n, ok := t.GetByPath(m.Path); ok {
				if !n.IsCollection() || *n.Collection != coll {
					flush()
					t.Collapse(m.Path, coll)
				}
				continue
			}
			res.Created += len(t.AddByPath(m.Path, &coll))
		case OpMetrics:
			updates = append(updates, tree.MetricUpdate{Path: m.Path, Metrics: m.Metrics})
		case OpRemove:
			flush()
			if t.RemoveByPath(m.Path) {
				res.Removed++
			}
		case OpRename:
			flush()
			if t.Rename(m.Path, m.NewPath) {
				res.Renamed++
			}
		}
	}
	flush()
	return res
}
