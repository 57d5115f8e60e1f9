package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/msomdec/realty/internal/domain"
)

// HandleFile serves uploaded listing images.
// GET /files/{key}
func HandleFile(files domain.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, contentType, err := files.Get(r.Context(), r.PathValue("key"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}
			slog.Error("serve file", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Keys are unique per upload, so the bytes never change.
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}
}
