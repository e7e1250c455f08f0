// Package storage defines the object store that holds archived query results.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one archived object. Key never includes the store prefix.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// ObjectReader is what archive replay needs: fetch a result file and check it exists.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// ObjectWriter is what the archiver needs. Delete only removes archives that no
// history entry references.
type ObjectWriter interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

type ObjectStore interface {
	ObjectReader
	ObjectWriter
}
