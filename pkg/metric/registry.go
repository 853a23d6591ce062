package metric

import "github.com/matzehuels/overview/pkg/errors"

// Factory creates an empty value of one kind.
type Factory func() Value

// MergeFunc merges children into dst in place.
type MergeFunc func(dst Value, children []Value) error

// Registry maps kinds to their factory and merge strategy.
type Registry struct {
	factories map[Kind]Factory
	mergers   map[Kind]MergeFunc
}

// NewRegistry returns a registry with no kinds registered.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
		mergers:   make(map[Kind]MergeFunc),
	}
}

// DefaultRegistry returns a registry with the four built-in kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindSize, func() Value { return &Sum{} }, MergeSum)
	r.Register(KindQuantity, func() Value { return &Sum{} }, MergeSum)
	r.Register(KindLastModified, func() Value { return &Median{} }, MergeMedian)
	r.Register(KindFileTypes, func() Value { return NewHistogram() }, MergeHistogram)
	return r
}

// Register installs the factory and merge strategy for a kind. Either may be
// nil to leave that half unregistered.
func (r *Registry) Register(k Kind, f Factory, m MergeFunc) {
	if f != nil {
		r.factories[k] = f
	}
	if m != nil {
		r.mergers[k] = m
	}
}

// New returns an empty value for the kind.
func (r *Registry) New(k Kind) (Value, error) {
	f, ok := r.factories[k]
	if !ok {
		return nil, errors.New(errors.ErrCodeMissingFactory, "no factory registered for metric %s", k)
	}
	return f(), nil
}

// Merge merges children into dst using the kind's strategy.
func (r *Registry) Merge(k Kind, dst Value, children []Value) error {
	m, ok := r.mergers[k]
	if !ok {
		return errors.New(errors.ErrCodeMissingMerge, "no merge strategy registered for metric %s", k)
	}
	return m(dst, children)
}
