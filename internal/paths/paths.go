// Package paths validates and normalizes the user-facing path strings that
// address nodes inside a namespace. It knows nothing about the database; the
// segment walk itself lives in the database package.
package paths

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength = 255
	MaxPathLength = 1000
)

var ErrInvalidName = errors.New("name contains forbidden characters or is empty")
var ErrPathTooLong = errors.New("path is too long")

// forbiddenChars mirrors what most desktop filesystems reject, so names stay
// portable when users sync them back to disk.
const forbiddenChars = `\/:*?"<>|`

// ValidateName reports whether a single path segment is acceptable as a node
// name. Separators are forbidden here; callers split paths first.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if name == "." || name == ".." {
		return ErrInvalidName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, forbiddenChars) {
		return ErrInvalidName
	}
	for _, r := range name {
		if r < 0x20 {
			return ErrInvalidName
		}
	}
	return nil
}

// Normalize brings a raw path into canonical form: forward slashes only, no
// leading, trailing or doubled separators, no surrounding whitespace. The
// empty string is the canonical form of the root.
func Normalize(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.Trim(p, "/")
}

// Split normalizes a raw path and breaks it into validated segments. An empty
// slice addresses the root. Each segment is checked with ValidateName, so a
// successful Split guarantees every returned segment is a legal node name.
func Split(raw string) ([]string, error) {
	p := Normalize(raw)
	if p == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(p) > MaxPathLength {
		return nil, ErrPathTooLong
	}

	segments := strings.Split(p, "/")
	for _, segment := range segments {
		if err := ValidateName(segment); err != nil {
			return nil, err
		}
	}
	return segments, nil
}

// Join builds a canonical path from segments. It is the inverse of Split for
// already valid names.
func Join(segments []string) string {
	return strings.Join(segments, "/")
}
