// Package mongo implements the low-level MongoDB client used by the memory
// store. Constructing the client bootstraps the collection's indexes, so the
// store's lazy once-per-process construction doubles as schema bootstrap.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"goa.design/toolforge/features/memory"
)

const (
	defaultCollection = "tool_memory"
	defaultTimeout    = 5 * time.Second
	pingerName        = "memory-mongo"
)

type (
	// Options configures the Mongo client implementation.
	Options struct {
		// Client is the connected MongoDB client. Required.
		Client *mongodriver.Client
		// Database is the database name. Required.
		Database string
		// Collection is the collection name. Defaults to "tool_memory".
		Collection string
		// Timeout bounds individual operations. Defaults to 5 seconds.
		Timeout time.Duration
	}

	// Client exposes Mongo-backed operations for memory values.
	Client struct {
		mongo   *mongodriver.Client
		coll    *mongodriver.Collection
		timeout time.Duration
	}

	valueDocument struct {
		ID        string    `bson:"_id"`
		ScopeKey  string    `bson:"scope_key"`
		Namespace string    `bson:"namespace"`
		Key       string    `bson:"key"`
		Value     any       `bson:"value"`
		UpdatedAt time.Time `bson:"updated_at"`
	}
)

// Compile-time checks.
var (
	_ memory.Client = (*Client)(nil)
	_ health.Pinger = (*Client)(nil)
)

// New returns a Client backed by the provided MongoDB client and ensures the
// collection's indexes exist.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collection)
	c := &Client{mongo: opts.Client, coll: coll, timeout: timeout}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "scope_key", Value: 1}, {Key: "namespace", Value: 1}, {Key: "key", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Name identifies the client for health reporting.
func (c *Client) Name() string {
	return pingerName
}

// Ping checks MongoDB connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

// Get retrieves a value, returning memory.ErrNotFound for missing keys.
func (c *Client) Get(ctx context.Context, scopeKey, namespace, key string) (any, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc valueDocument
	err := c.coll.FindOne(ctx, bson.M{"_id": docID(scopeKey, namespace, key)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, memory.ErrNotFound
		}
		return nil, err
	}
	return normalizeValue(doc.Value), nil
}

// Set stores or replaces a value.
func (c *Client) Set(ctx context.Context, scopeKey, namespace, key string, value any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	doc := valueDocument{
		ID:        docID(scopeKey, namespace, key),
		ScopeKey:  scopeKey,
		Namespace: namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete removes a value. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, scopeKey, namespace, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": docID(scopeKey, namespace, key)})
	return err
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func docID(scopeKey, namespace, key string) string {
	return scopeKey + "|" + namespace + "|" + key
}

// normalizeValue rewrites BSON decoder shapes into the plain JSON-like values
// callers stored: nested documents become map[string]any, arrays become
// []any, and int32 widens to int64.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.M:
		return normalizeMap(x)
	case map[string]any:
		return normalizeMap(x)
	case bson.A:
		return normalizeSlice(x)
	case []any:
		return normalizeSlice(x)
	case int32:
		return int64(x)
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalizeValue(v)
	}
	return out
}
