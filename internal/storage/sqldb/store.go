package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ezotic/devcamper-api/internal/storage"
	"github.com/ezotic/devcamper-api/internal/storage/dialect"
)

// collectionName restricts collection names to safe SQL identifiers.
var collectionName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store is a SQL implementation of storage.DocumentStore that keeps one table
// per collection with the document serialized as JSON.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect

	mu     sync.Mutex
	tables map[string]bool
}

var _ storage.DocumentStore = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New opens the database and verifies it is reachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to an in-memory sqlite database is a fresh database.
	if strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	return NewWithDB(db, d), nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(ctx context.Context, dsn string) (*Store, error) {
	return New(ctx, Config{Driver: "sqlite", DSN: dsn})
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sqlx.DB, d dialect.Dialect) *Store {
	return &Store{
		db:      db,
		dialect: d,
		tables:  make(map[string]bool),
	}
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns the named collection. The backing table is created on
// first use.
func (s *Store) Collection(name string) storage.Collection {
	return &collection{store: s, name: name}
}

func (s *Store) ensureTable(ctx context.Context, name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables[name] {
		return nil
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
id TEXT PRIMARY KEY,
body %s NOT NULL,
created_at %s NOT NULL,
updated_at %s NOT NULL
)`, name, s.dialect.TextType(), s.dialect.TimestampType(), s.dialect.TimestampType())

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	s.tables[name] = true
	return nil
}

type collection struct {
	store *Store
	name  string
}

type row struct {
	ID   string `db:"id"`
	Body string `db:"body"`
}

func (r row) document() (storage.Document, error) {
	doc := storage.Document{}
	if err := json.Unmarshal([]byte(r.Body), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", r.ID, err)
	}
	doc[storage.IDField] = r.ID
	return doc, nil
}

func parseID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", storage.ErrInvalidID, id)
	}
	return nil
}

func (c *collection) List(ctx context.Context, opts storage.ListOptions) ([]storage.Document, error) {
	if err := c.store.ensureTable(ctx, c.name); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, body FROM %s ORDER BY created_at, id`, c.name)
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	var rows []row
	if err := c.store.db.SelectContext(ctx, &rows, c.store.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.name, err)
	}

	docs := make([]storage.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *collection) Count(ctx context.Context) (int64, error) {
	if err := c.store.ensureTable(ctx, c.name); err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.name)
	if err := c.store.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.name, err)
	}
	return n, nil
}

func (c *collection) Get(ctx context.Context, id string) (storage.Document, error) {
	if err := parseID(id); err != nil {
		return nil, err
	}
	if err := c.store.ensureTable(ctx, c.name); err != nil {
		return nil, err
	}

	var r row
	query := c.store.dialect.Rebind(fmt.Sprintf(`SELECT id, body FROM %s WHERE id = ?`, c.name))
	err := c.store.db.GetContext(ctx, &r, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", c.name, id, err)
	}
	return r.document()
}

func (c *collection) Insert(ctx context.Context, doc storage.Document) (storage.Document, error) {
	if err := c.store.ensureTable(ctx, c.name); err != nil {
		return nil, err
	}

	body := storage.WithoutID(doc)
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	query := c.store.dialect.Rebind(fmt.Sprintf(
		`INSERT INTO %s (id, body, created_at, updated_at) VALUES (?, ?, ?, ?)`, c.name))

	if _, err := c.store.db.ExecContext(ctx, query, id, string(raw), now, now); err != nil {
		if c.store.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
		}
		return nil, fmt.Errorf("failed to insert into %s: %w", c.name, err)
	}

	body[storage.IDField] = id
	return body, nil
}

func (c *collection) Update(ctx context.Context, id string, fields storage.Document) (storage.Document, error) {
	if err := parseID(id); err != nil {
		return nil, err
	}
	if err := c.store.ensureTable(ctx, c.name); err != nil {
		return nil, err
	}

	tx, err := c.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var r row
	selectQuery := c.store.dialect.Rebind(fmt.Sprintf(`SELECT id, body FROM %s WHERE id = ?`, c.name))
	err = tx.GetContext(ctx, &r, selectQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", c.name, id, err)
	}

	doc, err := r.document()
	if err != nil {
		return nil, err
	}
	for k, v := range storage.WithoutID(fields) {
		doc[k] = v
	}

	raw, err := json.Marshal(storage.WithoutID(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	updateQuery := c.store.dialect.Rebind(fmt.Sprintf(
		`UPDATE %s SET body = ?, updated_at = ? WHERE id = ?`, c.name))
	if _, err := tx.ExecContext(ctx, updateQuery, string(raw), time.Now().UTC(), id); err != nil {
		if c.store.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
		}
		return nil, fmt.Errorf("failed to update %s %s: %w", c.name, id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return doc, nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	if err := parseID(id); err != nil {
		return err
	}
	if err := c.store.ensureTable(ctx, c.name); err != nil {
		return err
	}

	query := c.store.dialect.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.name))
	result, err := c.store.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", c.name, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}
