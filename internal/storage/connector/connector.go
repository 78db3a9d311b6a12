// Package connector establishes the process's single store connection from a
// connection URI.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ezotic/devcamper-api/internal/storage"
	"github.com/ezotic/devcamper-api/internal/storage/memory"
	"github.com/ezotic/devcamper-api/internal/storage/mongodb"
	"github.com/ezotic/devcamper-api/internal/storage/sqldb"
)

// ConnectTimeout bounds connect plus the initial ping.
const ConnectTimeout = 10 * time.Second

// ErrUnsupportedScheme is returned for URIs no backend understands.
var ErrUnsupportedScheme = errors.New("unsupported store uri scheme")

// Backend names the store implementation chosen for a URI.
type Backend string

const (
	BackendMongo    Backend = "mongodb"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
	BackendMemory   Backend = "memory"
)

// Detect maps uri to a backend and the DSN that backend expects.
func Detect(uri string) (Backend, string, error) {
	switch {
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return BackendMongo, uri, nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return BackendPostgres, uri, nil
	case uri == "memory:":
		return BackendMemory, "", nil
	case strings.HasPrefix(uri, "sqlite:"):
		return BackendSQLite, strings.TrimPrefix(uri, "sqlite:"), nil
	case strings.HasPrefix(uri, "file:"):
		return BackendSQLite, uri, nil
	case strings.Contains(uri, "://"):
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, Redact(uri))
	case uri == "":
		return "", "", fmt.Errorf("%w: empty uri", ErrUnsupportedScheme)
	default:
		return BackendSQLite, uri, nil
	}
}

// Open connects to the store named by uri. It returns only once the store
// answered a ping; callers treat any error as fatal.
func Open(ctx context.Context, uri, database string) (storage.DocumentStore, error) {
	backend, dsn, err := Detect(uri)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	var store storage.DocumentStore
	switch backend {
	case BackendMongo:
		store, err = mongodb.New(ctx, dsn, database)
	case BackendPostgres:
		store, err = sqldb.New(ctx, sqldb.Config{Driver: "postgres", DSN: dsn})
	case BackendSQLite:
		store, err = sqldb.NewSQLite(ctx, dsn)
	case BackendMemory:
		store = memory.New()
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s store at %s: %w", backend, Redact(uri), err)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ping %s store at %s: %w", backend, Redact(uri), err)
	}

	return store, nil
}

// Redact hides any password in uri so it can be logged.
func Redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	return u.Redacted()
}
