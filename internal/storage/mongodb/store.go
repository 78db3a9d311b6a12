// Package mongodb provides the MongoDB document store.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ezotic/devcamper-api/internal/storage"
)

// DefaultDatabase is used when neither the URI path nor the config names one.
const DefaultDatabase = "devcamper"

// Store is a MongoDB implementation of storage.DocumentStore.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.DocumentStore = (*Store)(nil)

// New connects to uri and pings the primary. database overrides the name in
// the URI path.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}

	if database == "" {
		database = DatabaseFromURI(uri)
	}

	return &Store{
		client: client,
		db:     client.Database(database),
	}, nil
}

// DatabaseFromURI returns the database named in the URI path, or DefaultDatabase.
func DatabaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultDatabase
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return DefaultDatabase
	}
	return name
}

func (s *Store) Collection(name string) storage.Collection {
	return &collection{coll: s.db.Collection(name)}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

type collection struct {
	coll *mongo.Collection
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", storage.ErrInvalidID, id)
	}
	return oid, nil
}

func translate(err error, id string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	default:
		return err
	}
}

// findOptions pages in insertion order; ObjectIDs grow with creation time.
func findOptions(opts storage.ListOptions) *options.FindOptions {
	findOpts := options.Find().SetSort(bson.D{{Key: storage.IDField, Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit)).SetSkip(int64(opts.Offset))
	}
	return findOpts
}

func (c *collection) List(ctx context.Context, opts storage.ListOptions) ([]storage.Document, error) {
	cursor, err := c.coll.Find(ctx, bson.M{}, findOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.coll.Name(), err)
	}

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.coll.Name(), err)
	}

	docs := make([]storage.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(m))
	}
	return docs, nil
}

func (c *collection) Count(ctx context.Context) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

func (c *collection) Get(ctx context.Context, id string) (storage.Document, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var m bson.M
	if err := c.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&m); err != nil {
		return nil, translate(err, id)
	}
	return toDocument(m), nil
}

func (c *collection) Insert(ctx context.Context, doc storage.Document) (storage.Document, error) {
	body := storage.WithoutID(doc)
	oid := primitive.NewObjectID()

	insert := bson.M{"_id": oid}
	for k, v := range body {
		insert[k] = v
	}

	if _, err := c.coll.InsertOne(ctx, insert); err != nil {
		return nil, translate(err, oid.Hex())
	}

	body[storage.IDField] = oid.Hex()
	return body, nil
}

func (c *collection) Update(ctx context.Context, id string, fields storage.Document) (storage.Document, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := storage.WithoutID(fields)
	if len(set) == 0 {
		return c.Get(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m bson.M
	err = c.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M(set)}, opts).Decode(&m)
	if err != nil {
		return nil, translate(err, id)
	}
	return toDocument(m), nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", c.coll.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

func toDocument(m bson.M) storage.Document {
	doc := make(storage.Document, len(m))
	for k, v := range m {
		doc[k] = normalize(v)
	}
	return doc
}

// normalize converts driver-specific values into plain JSON-friendly ones.
func normalize(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case bson.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalize(inner)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	default:
		return v
	}
}
