package cache

// SnapshotKeyOpts are the scan settings that change a snapshot's content.
type SnapshotKeyOpts struct {
	MaxChildren    int      `json:"max_children"`
	FollowSymlinks bool     `json:"follow_symlinks"`
	Ignore         []string `json:"ignore"`
	Format         string   `json:"format"`
	Version        int      `json:"version"`
}

// Keyer generates cache keys.
type Keyer interface {
	// SnapshotKey identifies the snapshot of root scanned with opts.
	SnapshotKey(root string, opts SnapshotKeyOpts) string
}

// DefaultKeyer hashes the root and options.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SnapshotKey returns "snapshot:<sha256>".
func (DefaultKeyer) SnapshotKey(root string, opts SnapshotKeyOpts) string {
	return hashKey("snapshot", root, opts)
}
