package resource

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ezotic/devcamper-api/internal/codec"
	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/pipeline"
	"github.com/ezotic/devcamper-api/internal/storage"
)

// PhotoField is the multipart field carrying an uploaded photo.
const PhotoField = "file"

// WithUploads enables PUT /{id}/photo, storing uploaded images in dir.
func (g *Group) WithUploads(dir string) *Group {
	g.uploadDir = dir
	return g
}

// photo stores the uploaded image as photo_<id><ext> and records the file
// name on the document.
func (g *Group) photo(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	ctx := r.Context()
	if _, err := g.collection().Get(ctx, id); err != nil {
		return err
	}

	c := pipeline.FromRequest(r)
	if c == nil || len(c.Files[PhotoField]) == 0 {
		return domain.ErrValidation("Please upload a file")
	}
	fh := c.Files[PhotoField][0]
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image") {
		return domain.ErrValidation("Please upload an image file")
	}

	name := "photo_" + id + filepath.Ext(fh.Filename)
	if err := saveUpload(fh, filepath.Join(g.uploadDir, name)); err != nil {
		return domain.ErrInternal("Problem with file upload").WithCause(err)
	}

	if _, err := g.collection().Update(ctx, id, storage.Document{"photo": name}); err != nil {
		return err
	}
	g.logger.Debug("photo stored",
		slog.String("collection", g.name),
		slog.String("id", id),
		slog.String("file", name),
	)
	codec.WriteData(w, http.StatusOK, name)
	return nil
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return dst.Close()
}
