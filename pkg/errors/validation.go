package errors

import (
	"strings"
	"unicode"
)

// ValidateRelPath validates a tree-relative path received from outside the
// process (HTTP requests, snapshot files). Scanner messages are produced
// in-process and are not passed through here.
//
// Validation rules:
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative to the tree root)
//   - No ".." segments
//   - No backslashes
//
// The empty path is valid and names the root.
func ValidateRelPath(path string) error {
	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain parent segments (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateName checks a single folder name read from a snapshot document.
func ValidateName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "name cannot be empty")
	}
	if name == "." || name == ".." {
		return New(ErrCodeInvalidInput, "name cannot be %q", name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return New(ErrCodeInvalidInput, "name cannot contain path separators")
	}
	return nil
}
