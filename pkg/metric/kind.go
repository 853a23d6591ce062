package metric

import "fmt"

// Kind identifies one metric. The set of kinds is closed.
type Kind int

const (
	// KindSize is the total size in bytes of the files in a folder.
	KindSize Kind = iota
	// KindQuantity is the number of files in a folder.
	KindQuantity
	// KindLastModified is the mean modification time (unix seconds) of the files in a folder.
	KindLastModified
	// KindFileTypes is a histogram of file extensions.
	KindFileTypes
)

// Kinds lists every defined kind in declaration order.
var Kinds = []Kind{KindSize, KindQuantity, KindLastModified, KindFileTypes}

var kindNames = map[Kind]string{
	KindSize:         "size",
	KindQuantity:     "quantity",
	KindLastModified: "last_modified",
	KindFileTypes:    "file_types",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the kind with the given wire name.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}
