package eventlog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xLillium/rip/internal/eventlog"
)

// setupMongoClient starts a disposable Mongo container the way
// registry/store/mongo/mongo_test.go does, skipping rather than failing
// the test when Docker isn't available.
func setupMongoClient(t *testing.T) *mongo.Client {
	t.Helper()
	ctx := context.Background()

	var (
		container testcontainers.Container
		err       error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("docker not available: %v", r)
			}
		}()
		container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{"27017/tcp"},
				WaitingFor:   wait.ForLog("Waiting for connections"),
				Tmpfs:        map[string]string{"/data/db": "rw"},
			},
			Started: true,
		})
	}()
	if err != nil {
		t.Skipf("Docker not available, skipping Mongo test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := mongo.Connect(options.Client().ApplyURI(fmt.Sprintf("mongodb://%s:%s", host, port.Port())))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))
	return client
}

func TestMongoSnapshotIndexRecordAndLookupRoundTrips(t *testing.T) {
	client := setupMongoClient(t)
	ctx := context.Background()

	index, err := eventlog.NewMongoSnapshotIndex(ctx, eventlog.MongoSnapshotIndexOptions{
		Client:     client,
		Database:   "rip_test",
		Collection: t.Name(),
	})
	require.NoError(t, err)

	writtenAt := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, index.Record(ctx, "sess-1", "/data/snapshots/sess-1.json", writtenAt))

	ref, err := index.Lookup(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", ref.SessionID)
	require.Equal(t, "/data/snapshots/sess-1.json", ref.SnapshotPath)
	require.True(t, writtenAt.Equal(ref.WrittenAt))
}
