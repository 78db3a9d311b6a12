// Package resource provides the document-backed route groups mounted by the
// route table.
package resource

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ezotic/devcamper-api/internal/codec"
	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/storage"
)

const (
	// DefaultPageSize applies when ?limit is absent.
	DefaultPageSize = 25
	// MaxPageSize caps ?limit.
	MaxPageSize = 100
)

// Page points at a neighbouring page of a listing.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination links a listing to its neighbours.
type Pagination struct {
	Next *Page `json:"next,omitempty"`
	Prev *Page `json:"prev,omitempty"`
}

// ListResponse is the envelope for a paginated listing.
type ListResponse struct {
	Success    bool               `json:"success"`
	Count      int                `json:"count"`
	Pagination Pagination         `json:"pagination"`
	Data       []storage.Document `json:"data"`
}

// Group serves CRUD routes over one collection:
//
//	GET    /       list (?page, ?limit)
//	POST   /       create
//	GET    /{id}   fetch
//	PUT    /{id}   merge fields
//	DELETE /{id}   remove
//	PUT    /{id}/photo  upload an image (only with WithUploads)
type Group struct {
	name      string
	store     storage.DocumentStore
	logger    *slog.Logger
	uploadDir string
}

// NewGroup creates a group over the named collection.
func NewGroup(store storage.DocumentStore, collection string, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{name: collection, store: store, logger: logger}
}

// Routes implements routes.Group.
func (g *Group) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", codec.Handle(g.list))
	r.Post("/", codec.Handle(g.create))
	r.Get("/{id}", codec.Handle(g.get))
	r.Put("/{id}", codec.Handle(g.update))
	r.Delete("/{id}", codec.Handle(g.delete))
	if g.uploadDir != "" {
		r.Put("/{id}/photo", codec.Handle(g.photo))
	}
	return r
}

func (g *Group) collection() storage.Collection {
	return g.store.Collection(g.name)
}

func (g *Group) list(w http.ResponseWriter, r *http.Request) error {
	page, limit, err := paging(r)
	if err != nil {
		return err
	}

	ctx := r.Context()
	total, err := g.collection().Count(ctx)
	if err != nil {
		return err
	}
	docs, err := g.collection().List(ctx, storage.ListOptions{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []storage.Document{}
	}

	var pagination Pagination
	if int64(page*limit) < total {
		pagination.Next = &Page{Page: page + 1, Limit: limit}
	}
	if page > 1 {
		pagination.Prev = &Page{Page: page - 1, Limit: limit}
	}

	codec.WriteJSON(w, http.StatusOK, ListResponse{
		Success:    true,
		Count:      len(docs),
		Pagination: pagination,
		Data:       docs,
	})
	return nil
}

func (g *Group) get(w http.ResponseWriter, r *http.Request) error {
	doc, err := g.collection().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	codec.WriteData(w, http.StatusOK, doc)
	return nil
}

func (g *Group) create(w http.ResponseWriter, r *http.Request) error {
	doc, err := decodeDocument(r)
	if err != nil {
		return err
	}
	created, err := g.collection().Insert(r.Context(), doc)
	if err != nil {
		return err
	}
	g.logger.Debug("document created",
		slog.String("collection", g.name),
		slog.String("id", created.ID()),
	)
	codec.WriteData(w, http.StatusCreated, created)
	return nil
}

func (g *Group) update(w http.ResponseWriter, r *http.Request) error {
	fields, err := decodeDocument(r)
	if err != nil {
		return err
	}
	updated, err := g.collection().Update(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		return err
	}
	codec.WriteData(w, http.StatusOK, updated)
	return nil
}

func (g *Group) delete(w http.ResponseWriter, r *http.Request) error {
	if err := g.collection().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	codec.WriteData(w, http.StatusOK, map[string]any{})
	return nil
}

// decodeDocument reads a JSON object body. The pipeline has already
// enforced the size limit and sanitized the payload.
func decodeDocument(r *http.Request) (storage.Document, error) {
	var doc storage.Document
	err := json.NewDecoder(r.Body).Decode(&doc)
	switch {
	case errors.Is(err, io.EOF):
		return nil, domain.ErrValidation("Request body must be a JSON object")
	case err != nil:
		return nil, domain.ErrValidation("Request body must be a JSON object").WithCause(err)
	case doc == nil:
		return nil, domain.ErrValidation("Request body must be a JSON object")
	}
	return storage.WithoutID(doc), nil
}

func paging(r *http.Request) (page, limit int, err error) {
	page, limit = 1, DefaultPageSize
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, domain.ErrValidation("page must be a positive integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, domain.ErrValidation("limit must be a positive integer")
		}
		if limit > MaxPageSize {
			limit = MaxPageSize
		}
	}
	return page, limit, nil
}
