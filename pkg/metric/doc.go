// Package metric provides the mergeable per-folder statistics that drive node
// size, colour and labels in an overview.
//
// # Values
//
// A [Value] is one of three variants:
//
//   - [*Sum]: a plain total (bytes, file count)
//   - [*Median]: a weighted running mean with the number of samples behind it
//   - [*Histogram]: integer counts keyed by string (file extensions)
//
// Every node carries two [Set]s: the values measured for the folder itself
// ("own") and the values of the folder merged with all of its descendants
// ("recursive"). The recursive set is a cache; it can always be rebuilt from
// the own sets of a subtree.
//
// # Registry
//
// A [Registry] knows, for each [Kind], how to create an empty value and how
// to merge child values into a parent. Registries are built explicitly:
//
//	reg := metric.DefaultRegistry()
//	dst, _ := reg.New(metric.KindSize)
//	_ = reg.Merge(metric.KindSize, dst, []metric.Value{&metric.Sum{S: 10}, &metric.Sum{S: 5}})
//
// A kind without a factory or merge handler is a configuration error. The
// registry reports it with a coded error and leaves the decision to skip the
// kind to the caller.
//
// # Concurrency
//
// Values and sets are plain data and not safe for concurrent mutation. A
// Registry is read-only after construction and may be shared.
package metric
