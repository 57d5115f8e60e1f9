package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
)

func memFile(name, contentType string, data []byte) service.UploadFile {
	return service.UploadFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestUploadService_PreservesOrder(t *testing.T) {
	db := newTestDB(t)
	uploads := service.NewUploadService(db.FileStore())
	ctx := context.Background()

	files := []service.UploadFile{
		memFile("first.png", "image/png", bytes.Repeat([]byte{1}, 4096)),
		memFile("second.jpg", "image/jpeg", []byte("tiny")),
		memFile("third.webp", "image/webp", bytes.Repeat([]byte{3}, 1024)),
	}

	var mu sync.Mutex
	done := map[int]bool{}
	images, err := uploads.UploadAll(ctx, 42, files, func(p service.UploadProgress) {
		mu.Lock()
		defer mu.Unlock()
		if p.State == service.UploadDone {
			done[p.Index] = true
		}
		if p.BytesTransferred > p.TotalBytes {
			t.Errorf("progress overran total: %+v", p)
		}
	})
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}

	if len(images) != len(files) {
		t.Fatalf("expected %d images, got %d", len(files), len(images))
	}
	for i, img := range images {
		if img.Filename != files[i].Filename {
			t.Fatalf("image %d: expected %s, got %s", i, files[i].Filename, img.Filename)
		}
		if !strings.HasPrefix(img.StorageKey, "42-"+files[i].Filename+"-") {
			t.Fatalf("unexpected storage key %q", img.StorageKey)
		}
		if img.URL != service.FileURL(img.StorageKey) {
			t.Fatalf("unexpected url %q", img.URL)
		}
		if img.Size != files[i].Size {
			t.Fatalf("image %d: expected size %d, got %d", i, files[i].Size, img.Size)
		}
		if !done[i] {
			t.Fatalf("no completion reported for image %d", i)
		}

		data, ct, err := db.FileStore().Get(ctx, img.StorageKey)
		if err != nil {
			t.Fatalf("Get %s: %v", img.StorageKey, err)
		}
		if int64(len(data)) != img.Size || ct != files[i].ContentType {
			t.Fatalf("stored file mismatch for %s", img.StorageKey)
		}
	}
}

func TestUploadService_FailureAborts(t *testing.T) {
	db := newTestDB(t)
	uploads := service.NewUploadService(db.FileStore())

	broken := service.UploadFile{
		Filename:    "broken.png",
		ContentType: "image/png",
		Size:        10,
		Open:        func() (io.ReadCloser, error) { return nil, errors.New("disk gone") },
	}
	var failed []int
	var mu sync.Mutex
	_, err := uploads.UploadAll(context.Background(), 1, []service.UploadFile{
		memFile("ok.png", "image/png", []byte("fine")),
		broken,
	}, func(p service.UploadProgress) {
		if p.State == service.UploadFailed {
			mu.Lock()
			failed = append(failed, p.Index)
			mu.Unlock()
		}
	})
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if !slices.Contains(failed, 1) {
		t.Fatalf("expected failure reported for index 1, got %v", failed)
	}
}

func TestStorageKey_SanitizesFilename(t *testing.T) {
	key := service.StorageKey(7, "../my house (1).jpg")
	if !strings.HasPrefix(key, "7-my_house__1_.jpg-") {
		t.Fatalf("unexpected key %q", key)
	}
	if strings.Contains(key, "/") {
		t.Fatalf("key must not contain a slash: %q", key)
	}
}
