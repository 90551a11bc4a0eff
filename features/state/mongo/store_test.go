package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var (
	testMongoClient    *mongodriver.Client
	testMongoContainer testcontainers.Container
	skipMongoTests     bool
)

func TestMain(m *testing.M) {
	setupMongoDB()
	code := m.Run()
	teardownMongoDB()
	os.Exit(code)
}

func setupMongoDB() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testMongoContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if containerErr != nil {
		fmt.Printf("Docker not available, MongoDB tests will be skipped: %v\n", containerErr)
		skipMongoTests = true
		return
	}

	host, err := testMongoContainer.Host(ctx)
	if err != nil {
		fmt.Printf("Failed to get container host: %v\n", err)
		skipMongoTests = true
		return
	}
	port, err := testMongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		fmt.Printf("Failed to get container port: %v\n", err)
		skipMongoTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testMongoClient, err = mongodriver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		fmt.Printf("Failed to connect to MongoDB: %v\n", err)
		skipMongoTests = true
		return
	}
	if err := testMongoClient.Ping(ctx, readpref.Primary()); err != nil {
		fmt.Printf("Failed to ping MongoDB: %v\n", err)
		skipMongoTests = true
	}
}

func teardownMongoDB() {
	ctx := context.Background()
	if testMongoClient != nil {
		_ = testMongoClient.Disconnect(ctx)
	}
	if testMongoContainer != nil {
		_ = testMongoContainer.Terminate(ctx)
	}
}

func getStateStore(t *testing.T) *Store {
	t.Helper()
	if skipMongoTests {
		t.Skip("Docker not available, skipping MongoDB test")
	}
	db := testMongoClient.Database("state_test")
	session := db.Collection(t.Name() + "_state")
	specs := db.Collection(t.Name() + "_specs")
	require.NoError(t, session.Drop(context.Background()))
	require.NoError(t, specs.Drop(context.Background()))

	s, err := New(Options{
		Session: session,
		Specs:   specs,
		Client:  testMongoClient,
	})
	require.NoError(t, err)
	return s
}

func TestMongoLoadUnsavedIsEmpty(t *testing.T) {
	s := getStateStore(t)
	got, err := s.Load(context.Background(), "tool-1", "org-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestMongoSaveThenLoad(t *testing.T) {
	s := getStateStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tool-1", "org-1", map[string]any{"emails": []any{"a", "b"}}))
	got, err := s.Load(ctx, "tool-1", "org-1")
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, got["emails"])

	// Orgs are isolated by the state id.
	other, err := s.Load(ctx, "tool-1", "org-2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestMongoLoadReturnsPlainShapes(t *testing.T) {
	s := getStateStore(t)
	ctx := context.Background()

	// Nested documents and small integers must come back as map[string]any
	// and int64, not the driver's bson.D and int32, so downstream condition
	// and reducer helpers recognize them.
	require.NoError(t, s.Save(ctx, "tool-1", "org-1", map[string]any{
		"count": 0,
		"flags": map[string]any{"enabled": false},
		"emails": []any{
			map[string]any{"id": "a", "score": 2},
		},
	}))

	got, err := s.Load(ctx, "tool-1", "org-1")
	require.NoError(t, err)

	require.IsType(t, int64(0), got["count"])
	require.Equal(t, int64(0), got["count"])

	flags, ok := got["flags"].(map[string]any)
	require.True(t, ok, "nested documents must decode as map[string]any, got %T", got["flags"])
	require.Equal(t, false, flags["enabled"])

	emails, ok := got["emails"].([]any)
	require.True(t, ok, "arrays must decode as []any, got %T", got["emails"])
	require.Len(t, emails, 1)
	first, ok := emails[0].(map[string]any)
	require.True(t, ok, "array elements must decode as map[string]any, got %T", emails[0])
	require.Equal(t, "a", first["id"])
	require.Equal(t, int64(2), first["score"])
}

func TestMongoSpecFallbackLoadNormalizes(t *testing.T) {
	if skipMongoTests {
		t.Skip("Docker not available, skipping MongoDB test")
	}
	ctx := context.Background()
	db := testMongoClient.Database("state_test")
	specs := db.Collection(t.Name() + "_specs")
	require.NoError(t, specs.Drop(ctx))

	// An invalid namespace makes every session-scoped read fail, so Load
	// falls through to the spec document's runtime_state field.
	s, err := New(Options{
		Session: db.Collection("inv$alid"),
		Specs:   specs,
		Client:  testMongoClient,
	})
	require.NoError(t, err)

	_, err = specs.InsertOne(ctx, bson.M{
		"_id":    "tool-1",
		"org_id": "org-1",
		"runtime_state": bson.M{
			"count": int32(0),
			"flags": bson.M{"enabled": true},
		},
	})
	require.NoError(t, err)

	got, err := s.Load(ctx, "tool-1", "org-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), got["count"])
	flags, ok := got["flags"].(map[string]any)
	require.True(t, ok, "fallback state must decode as map[string]any, got %T", got["flags"])
	require.Equal(t, true, flags["enabled"])
}

func TestNormalizeState(t *testing.T) {
	got := normalizeState(map[string]any{
		"doc": bson.D{
			{Key: "count", Value: int32(0)},
			{Key: "tags", Value: bson.A{"a", int32(7)}},
		},
		"m":     bson.M{"nested": bson.D{{Key: "k", Value: "v"}}},
		"plain": "s",
		"n":     int64(3),
		"f":     1.5,
	})

	require.Equal(t, map[string]any{
		"doc": map[string]any{
			"count": int64(0),
			"tags":  []any{"a", int64(7)},
		},
		"m":     map[string]any{"nested": map[string]any{"k": "v"}},
		"plain": "s",
		"n":     int64(3),
		"f":     1.5,
	}, got)
}
