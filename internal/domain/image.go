package domain

import (
	"context"
	"io"
)

// ListingImage holds metadata about an uploaded listing image.
type ListingImage struct {
	StorageKey  string
	URL         string
	Filename    string // Original upload filename
	ContentType string
	Size        int64
}

// FileStore abstracts raw file byte storage.
// The implementation stores BLOBs in SQLite; the interface allows swapping to
// the filesystem or an object store.
type FileStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}
