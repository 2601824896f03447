// Package storage holds file content. The namespace only ever refers to
// content through an opaque storage key, so backends can be swapped without
// touching the node tree.
package storage

import "io"

type BlobStore interface {
	Save(key string, data io.Reader) (int64, error)
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
}
