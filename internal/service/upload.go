package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/msomdec/realty/internal/domain"
	"golang.org/x/sync/errgroup"
)

// UploadState is the lifecycle stage of a single file upload.
type UploadState string

const (
	UploadQueued  UploadState = "queued"
	UploadRunning UploadState = "running"
	UploadDone    UploadState = "done"
	UploadFailed  UploadState = "failed"
)

// UploadProgress reports how far one file of a batch has been transferred.
type UploadProgress struct {
	Index            int
	Filename         string
	BytesTransferred int64
	TotalBytes       int64
	State            UploadState
}

// ProgressFunc receives upload progress. It may be called concurrently from
// several uploads.
type ProgressFunc func(UploadProgress)

// UploadFile is one selected file awaiting upload.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadService stores listing images in the file store.
type UploadService struct {
	files domain.FileStore
}

// NewUploadService creates a new UploadService.
func NewUploadService(files domain.FileStore) *UploadService {
	return &UploadService{files: files}
}

// UploadAll uploads every file concurrently and returns the stored images in
// the order the files were given. Any failure cancels the remaining uploads
// and returns an error wrapping domain.ErrUploadFailed. Files already stored
// are left in place.
func (s *UploadService) UploadAll(ctx context.Context, ownerID int64, files []UploadFile, progress ProgressFunc) ([]domain.ListingImage, error) {
	if progress == nil {
		progress = func(UploadProgress) {}
	}

	images := make([]domain.ListingImage, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			img, err := s.upload(gctx, ownerID, i, f, progress)
			if err != nil {
				progress(UploadProgress{Index: i, Filename: f.Filename, TotalBytes: f.Size, State: UploadFailed})
				return fmt.Errorf("upload %s: %w", f.Filename, err)
			}
			images[i] = *img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	return images, nil
}

func (s *UploadService) upload(ctx context.Context, ownerID int64, index int, f UploadFile, progress ProgressFunc) (*domain.ListingImage, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()

	progress(UploadProgress{Index: index, Filename: f.Filename, TotalBytes: f.Size, State: UploadRunning})

	key := StorageKey(ownerID, f.Filename)
	pr := &progressReader{r: rc, report: func(n int64) {
		progress(UploadProgress{Index: index, Filename: f.Filename, BytesTransferred: n, TotalBytes: f.Size, State: UploadRunning})
	}}
	size, err := s.files.Save(ctx, key, f.ContentType, pr)
	if err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}

	progress(UploadProgress{Index: index, Filename: f.Filename, BytesTransferred: size, TotalBytes: size, State: UploadDone})

	return &domain.ListingImage{
		StorageKey:  key,
		URL:         FileURL(key),
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        size,
	}, nil
}

// DeleteAll removes the stored files behind images. Failures are logged and
// skipped so one missing blob does not keep the rest around.
func (s *UploadService) DeleteAll(ctx context.Context, images []domain.ListingImage) {
	for _, img := range images {
		if img.StorageKey == "" {
			continue
		}
		if err := s.files.Delete(ctx, img.StorageKey); err != nil {
			slog.Warn("delete stored image", "key", img.StorageKey, "error", err)
		}
	}
}

// StorageKey names a stored file as <ownerID>-<filename>-<uuid>.
func StorageKey(ownerID int64, filename string) string {
	return strconv.FormatInt(ownerID, 10) + "-" + sanitizeFilename(filename) + "-" + uuid.NewString()
}

// FileURL is the path the file handler serves a stored file from.
func FileURL(key string) string {
	return "/files/" + url.PathEscape(key)
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}

type progressReader struct {
	r      io.Reader
	n      atomic.Int64
	report func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.report(p.n.Add(int64(n)))
	}
	return n, err
}
