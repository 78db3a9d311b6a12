package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ezotic/devcamper-api/internal/storage"
)

// Store is an in-memory implementation of storage.DocumentStore
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
}

var _ storage.DocumentStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
	}
}

func (s *Store) Collection(name string) storage.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]storage.Document)}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("memory store closed")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

type collection struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]storage.Document
}

func copyDoc(id string, doc storage.Document) storage.Document {
	out := storage.WithoutID(doc)
	out[storage.IDField] = id
	return out
}

func (c *collection) lookup(id string) (storage.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrInvalidID, id)
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return doc, nil
}

func (c *collection) List(ctx context.Context, opts storage.ListOptions) ([]storage.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.order
	if opts.Limit > 0 {
		if opts.Offset >= len(ids) {
			ids = nil
		} else {
			ids = ids[opts.Offset:]
			if len(ids) > opts.Limit {
				ids = ids[:opts.Limit]
			}
		}
	}

	result := make([]storage.Document, 0, len(ids))
	for _, id := range ids {
		result = append(result, copyDoc(id, c.docs[id]))
	}
	return result, nil
}

func (c *collection) Count(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return int64(len(c.order)), nil
}

func (c *collection) Get(ctx context.Context, id string) (storage.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return copyDoc(id, doc), nil
}

func (c *collection) Insert(ctx context.Context, doc storage.Document) (storage.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New().String()
	c.docs[id] = storage.WithoutID(doc)
	c.order = append(c.order, id)

	return copyDoc(id, doc), nil
}

func (c *collection) Update(ctx context.Context, id string, fields storage.Document) (storage.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	for k, v := range storage.WithoutID(fields) {
		doc[k] = v
	}
	return copyDoc(id, doc), nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.lookup(id); err != nil {
		return err
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}
