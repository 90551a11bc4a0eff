// Package mongo provides a MongoDB implementation of the registry store.
//
// This implementation persists registered actions to MongoDB for durability
// across restarts, suitable for production deployments.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"goa.design/toolforge/registry/store"
	"goa.design/toolforge/runtime/tool"
)

const (
	defaultCollection = "registered_actions"
	defaultTimeout    = 5 * time.Second
	pingerName        = "registry-mongo"
)

type (
	// Options configures the Mongo store.
	Options struct {
		// Client is the connected MongoDB client. Required.
		Client *mongodriver.Client
		// Database is the database name. Required.
		Database string
		// Collection is the collection name. Defaults to "registered_actions".
		Collection string
		// Timeout bounds individual operations. Defaults to 5 seconds.
		Timeout time.Duration
	}

	// Store is a MongoDB implementation of the store.Store interface.
	Store struct {
		client  *mongodriver.Client
		coll    *mongodriver.Collection
		timeout time.Duration
	}

	// actionDocument wraps a registered action with its composite key.
	actionDocument struct {
		ID                    string `bson:"_id"`
		tool.RegisteredAction `bson:",inline"`
	}
)

// Compile-time checks.
var (
	_ store.Store   = (*Store)(nil)
	_ health.Pinger = (*Store)(nil)
)

// New creates the Mongo store and ensures its indexes.
func New(opts Options) (*Store, error) {
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
	s := &Store{client: opts.Client, coll: coll, timeout: timeout}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "integration_id", Value: 1}, {Key: "capability_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure registry indexes: %w", err)
	}
	return s, nil
}

// Name identifies the store for health reporting.
func (s *Store) Name() string {
	return pingerName
}

// Ping checks MongoDB connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Ping(ctx, readpref.Primary())
}

// PutActions stores or replaces the given records.
func (s *Store) PutActions(ctx context.Context, actions []tool.RegisteredAction) error {
	if len(actions) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	for _, a := range actions {
		doc := actionDocument{ID: docID(a.IntegrationID, a.CapabilityID), RegisteredAction: a}
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("put action %s: %w", doc.ID, err)
		}
	}
	return nil
}

// ListActions returns all records for an integration.
func (s *Store) ListActions(ctx context.Context, integrationID string) ([]tool.RegisteredAction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cursor, err := s.coll.Find(ctx, bson.M{"integration_id": integrationID})
	if err != nil {
		return nil, fmt.Errorf("list actions for %q: %w", integrationID, err)
	}
	var docs []actionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode actions for %q: %w", integrationID, err)
	}
	actions := make([]tool.RegisteredAction, len(docs))
	for i, d := range docs {
		actions[i] = d.RegisteredAction
	}
	return actions, nil
}

// GetAction retrieves one record by key.
func (s *Store) GetAction(ctx context.Context, integrationID, capabilityID string) (tool.RegisteredAction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc actionDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": docID(integrationID, capabilityID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return tool.RegisteredAction{}, store.ErrNotFound
		}
		return tool.RegisteredAction{}, err
	}
	return doc.RegisteredAction, nil
}

// DeleteActions removes all records for an integration.
func (s *Store) DeleteActions(ctx context.Context, integrationID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.coll.DeleteMany(ctx, bson.M{"integration_id": integrationID}); err != nil {
		return fmt.Errorf("delete actions for %q: %w", integrationID, err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func docID(integrationID, capabilityID string) string {
	return integrationID + "/" + capabilityID
}
