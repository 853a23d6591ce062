package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/matzehuels/overview/pkg/errors"
	"github.com/matzehuels/overview/pkg/metric"
	"github.com/matzehuels/overview/pkg/tree"
)

// Version is the current document format version.
const Version = 1

// Format is a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatBSON Format = "bson"
)

// FormatFromPath picks the format for a file name.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".bson":
		return FormatBSON, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported snapshot extension %q", filepath.Ext(path))
}

// Document is a serialized tree.
type Document struct {
	Version int       `json:"version" bson:"version"`
	Path    string    `json:"path" bson:"path"`
	Created time.Time `json:"created" bson:"created"`
	Root    NodeDoc   `json:"root" bson:"root"`
}

// NodeDoc is a serialized node.
type NodeDoc struct {
	Name       string              `json:"name" bson:"name"`
	Own        map[string]ValueDoc `json:"own,omitempty" bson:"own,omitempty"`
	Recursive  map[string]ValueDoc `json:"recursive,omitempty" bson:"recursive,omitempty"`
	Collection *CollectionDoc      `json:"collection,omitempty" bson:"collection,omitempty"`
	Children   []NodeDoc           `json:"children,omitempty" bson:"children,omitempty"`
}

// CollectionDoc is serialized collection metadata.
type CollectionDoc struct {
	Size  int `json:"size" bson:"size"`
	Depth int `json:"depth" bson:"depth"`
}

// ValueDoc is a serialized metric value. Variant selects which fields are
// meaningful.
type ValueDoc struct {
	Variant string            `json:"variant" bson:"variant"`
	S       float64           `json:"s,omitempty" bson:"s,omitempty"`
	Mean    float64           `json:"mean,omitempty" bson:"mean,omitempty"`
	Count   uint32            `json:"count,omitempty" bson:"count,omitempty"`
	Counts  map[string]uint64 `json:"counts,omitempty" bson:"counts,omitempty"`
}

// =============================================================================
// Tree -> Document
// =============================================================================

// FromTree captures the current state of t.
func FromTree(t *tree.Tree) Document {
	var walk func(n *tree.Node) NodeDoc
	walk = func(n *tree.Node) NodeDoc {
		d := NodeDoc{
			Name:      n.Name,
			Own:       encodeSet(n.Own),
			Recursive: encodeSet(n.Recursive),
		}
		if n.Collection != nil {
			d.Collection = &CollectionDoc{Size: n.Collection.Size, Depth: n.Collection.Depth}
		}
		for _, id := range n.Children {
			if c, ok := t.Node(id); ok {
				d.Children = append(d.Children, walk(c))
			}
		}
		return d
	}
	return Document{
		Version: Version,
		Path:    t.Path(),
		Created: time.Now().UTC().Truncate(time.Millisecond),
		Root:    walk(t.Root()),
	}
}

func encodeSet(s metric.Set) map[string]ValueDoc {
	if len(s) == 0 {
		return nil
	}
	out := make(map[string]ValueDoc, len(s))
	for k, v := range s {
		d := ValueDoc{Variant: v.Variant()}
		switch v := v.(type) {
		case *metric.Sum:
			d.S = v.S
		case *metric.Median:
			d.Mean, d.Count = v.Mean, v.Count
		case *metric.Histogram:
			d.Counts = make(map[string]uint64, len(v.Counts))
			for key, c := range v.Counts {
				d.Counts[key] = c
			}
		}
		out[k.String()] = d
	}
	return out
}

// =============================================================================
// Document -> Tree
// =============================================================================

// Load rebuilds a tree from doc and initializes it. The tree's observer sees
// the root being added and then a single TreeUpdated.
func Load(doc Document, opts tree.Options) (*tree.Tree, error) {
	if doc.Version != Version {
		return nil, errors.New(errors.ErrCodeInvalidSnapshot, "unsupported snapshot version %d", doc.Version)
	}
	t := tree.New(doc.Path, opts)
	root := t.Root()
	if doc.Root.Name != "" {
		root.Name = doc.Root.Name
	}
	if err := fill(root, doc.Root); err != nil {
		return nil, err
	}

	var walk func(parent *tree.Node, d NodeDoc) error
	walk = func(parent *tree.Node, d NodeDoc) error {
		seen := make(map[string]bool, len(d.Children))
		for _, cd := range d.Children {
			if err := errors.ValidateName(cd.Name); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "child of %q", parent.Name)
			}
			if seen[cd.Name] {
				return errors.New(errors.ErrCodeInvalidSnapshot, "duplicate folder %q in %q", cd.Name, parent.Name)
			}
			seen[cd.Name] = true
			c := t.InsertChild(parent.ID, cd.Name)
			if err := fill(c, cd); err != nil {
				return err
			}
			if err := walk(c, cd); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, doc.Root); err != nil {
		return nil, err
	}
	t.Initialize()
	return t, nil
}

func fill(n *tree.Node, d NodeDoc) error {
	var err error
	if n.Own, err = decodeSet(d.Own); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "node %q own metrics", d.Name)
	}
	if n.Recursive, err = decodeSet(d.Recursive); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "node %q recursive metrics", d.Name)
	}
	if d.Collection != nil {
		n.Collection = &tree.Collection{Size: d.Collection.Size, Depth: d.Collection.Depth}
	}
	return nil
}

func decodeSet(m map[string]ValueDoc) (metric.Set, error) {
	out := make(metric.Set, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		kind, ok := metric.ParseKind(key)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidSnapshot, "unknown metric kind %q", key)
		}
		d := m[key]
		switch d.Variant {
		case "sum":
			out[kind] = &metric.Sum{S: d.S}
		case "median":
			out[kind] = &metric.Median{Mean: d.Mean, Count: d.Count}
		case "histogram":
			h := metric.NewHistogram()
			for k, c := range d.Counts {
				h.Counts[k] = c
			}
			out[kind] = h
		default:
			return nil, errors.New(errors.ErrCodeInvalidSnapshot, "unknown metric variant %q for %s", d.Variant, key)
		}
	}
	return out, nil
}

// =============================================================================
// Codecs
// =============================================================================

// Marshal encodes doc in format f.
func Marshal(doc Document, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatBSON:
		return bson.Marshal(doc)
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported snapshot format %q", f)
}

// Unmarshal decodes data in format f.
func Unmarshal(data []byte, f Format) (Document, error) {
	var doc Document
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatBSON:
		err = bson.Unmarshal(data, &doc)
	default:
		return doc, errors.New(errors.ErrCodeInvalidFormat, "unsupported snapshot format %q", f)
	}
	if err != nil {
		return doc, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "decode %s snapshot", f)
	}
	return doc, nil
}

// WriteFile writes doc to path in the format implied by its extension.
func WriteFile(path string, doc Document) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(doc, f)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads a document from path.
func ReadFile(path string) (Document, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "snapshot %s", path)
		}
		return Document{}, err
	}
	return Unmarshal(data, f)
}
