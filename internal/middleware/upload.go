package middleware

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/pipeline"
)

const (
	// DefaultMaxUpload caps a single uploaded file.
	DefaultMaxUpload = 1_000_000
	// DefaultUploadMemory is kept in memory before parts spill to temp files.
	DefaultUploadMemory = 32 << 20
	// DefaultUploadRequest caps a whole multipart body, all files included.
	DefaultUploadRequest = 50 << 20
)

// FileUpload parses multipart/form-data bodies. Files land in
// Context.Files and plain fields in Context.Form.
type FileUpload struct {
	MaxBytes   int64
	MaxMemory  int64
	MaxRequest int64
}

// NewFileUpload creates an upload stage limiting each file to maxBytes.
func NewFileUpload(maxBytes int64) *FileUpload {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUpload
	}
	return &FileUpload{
		MaxBytes:   maxBytes,
		MaxMemory:  DefaultUploadMemory,
		MaxRequest: max(DefaultUploadRequest, 4*maxBytes),
	}
}

func (s *FileUpload) Name() string { return "file-upload" }

func (s *FileUpload) Process(c *pipeline.Context) pipeline.Result {
	r := c.Request
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return pipeline.Continue()
	}

	if s.MaxRequest > 0 {
		r.Body = http.MaxBytesReader(c.Response, r.Body, s.MaxRequest)
	}
	if err := r.ParseMultipartForm(s.MaxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return pipeline.Fail(domain.ErrPayloadTooLarge(MessageEntityTooLarge).WithCause(err))
		}
		return pipeline.Fail(domain.ErrMalformedInput("Invalid multipart body").WithCause(err))
	}

	form := r.MultipartForm
	c.OnComplete(func(*pipeline.Context) {
		_ = form.RemoveAll()
	})

	for field, headers := range form.File {
		for _, fh := range headers {
			if fh.Size > s.MaxBytes {
				return pipeline.Fail(s.tooLarge())
			}
		}
		c.Files[field] = headers
	}

	values := url.Values{}
	for k, vs := range form.Value {
		values[k] = append([]string(nil), vs...)
	}
	c.Form = values

	return pipeline.Continue()
}

func (s *FileUpload) tooLarge() *domain.APIError {
	return domain.ErrPayloadTooLarge(fmt.Sprintf("Please upload a file less than %d bytes", s.MaxBytes))
}
