// Package routes mounts the API route groups under their versioned prefixes.
package routes

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ezotic/devcamper-api/internal/codec"
	"github.com/ezotic/devcamper-api/internal/domain"
)

// Fixed mount prefixes.
const (
	PrefixBootcamps = "/api/v1/bootcamps"
	PrefixCourses   = "/api/v1/courses"
	PrefixAuth      = "/api/v1/auth"
	PrefixUsers     = "/api/v1/users"
	PrefixReviews   = "/api/v1/reviews"
)

// Group is a set of routes mounted under one prefix.
type Group interface {
	Routes() http.Handler
}

// GroupFunc adapts a handler constructor into a Group.
type GroupFunc func() http.Handler

func (f GroupFunc) Routes() http.Handler { return f() }

// Table maps prefixes to groups.
type Table struct {
	groups map[string]Group
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{groups: make(map[string]Group)}
}

// Add registers g under prefix. A prefix can only be registered once.
func (t *Table) Add(prefix string, g Group) error {
	if !strings.HasPrefix(prefix, "/") || (len(prefix) > 1 && strings.HasSuffix(prefix, "/")) {
		return fmt.Errorf("invalid route prefix %q", prefix)
	}
	if _, exists := t.groups[prefix]; exists {
		return fmt.Errorf("route prefix %q already mounted", prefix)
	}
	t.groups[prefix] = g
	return nil
}

// Prefixes returns the registered prefixes in sorted order.
func (t *Table) Prefixes() []string {
	prefixes := make([]string, 0, len(t.groups))
	for p := range t.groups {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Router builds the chi router with every group mounted. Unmatched paths
// and methods are sent to the error stage.
func (t *Table) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(codec.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return domain.ErrNotFound(fmt.Sprintf("Route %s not found", r.URL.Path))
	}))
	r.MethodNotAllowed(codec.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return domain.ErrMethodNotAllowed(fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path))
	}))

	for _, prefix := range t.Prefixes() {
		r.Mount(prefix, t.groups[prefix].Routes())
	}
	return r
}
