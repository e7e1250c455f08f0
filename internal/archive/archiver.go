package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigel-agm/NL-SQL/internal/observability"
	"github.com/tigel-agm/NL-SQL/internal/storage"
)

type Archiver struct {
	store storage.ObjectStore
	newID func() string
}

func NewArchiver(store storage.ObjectStore) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("archive: object store must not be nil")
	}
	return &Archiver{store: store, newID: uuid.NewString}, nil
}

// Store encodes a result as parquet and uploads it. The returned key is what history
// entries record as archive_key.
func (a *Archiver) Store(ctx context.Context, at time.Time, columns []string, rows [][]any) (key string, err error) {
	defer func() { observability.ObserveArchiveUpload(err) }()

	payload, err := EncodeResult(columns, rows)
	if err != nil {
		return "", err
	}
	key, err = storage.BuildResultPath(at, a.newID())
	if err != nil {
		return "", err
	}
	if _, err := a.store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: ContentType}); err != nil {
		return "", fmt.Errorf("upload archive %s: %w", key, err)
	}
	return key, nil
}

// Discard removes an archive that no history entry will reference.
func (a *Archiver) Discard(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return a.store.Delete(ctx, key)
}

// Lookup returns the size of an archived result, or storage.ErrObjectNotFound.
func (a *Archiver) Lookup(ctx context.Context, key string) (storage.ObjectInfo, error) {
	return a.store.Stat(ctx, key)
}
