package cache

// ScopedKeyer wraps a Keyer with a prefix. Paths only mean something on the
// machine they were scanned on, so a cache shared between machines (Redis)
// scopes its keys by host:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "host:"+hostname+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SnapshotKey generates a prefixed snapshot key.
func (k *ScopedKeyer) SnapshotKey(root string, opts SnapshotKeyOpts) string {
	return k.prefix + k.inner.SnapshotKey(root, opts)
}
