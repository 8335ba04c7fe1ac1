// Package testhelpers provides a MongoDB instance for integration tests.
//
// When MONGODB_URI is set the tests use that server. Otherwise a single-node
// replica set is started with testcontainers-go (change streams need a replica
// set). Tests are skipped in short mode or when neither is available.
package testhelpers

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mongoImage = "mongo:7.0"

var (
	sharedOnce sync.Once
	sharedURI  string
	sharedErr  error
)

// MongoURI returns a connection string for a MongoDB replica set, starting a
// container on first use. The container lives for the whole test binary and
// is reaped by testcontainers' resource reaper.
func MongoURI(t *testing.T) string {
	t.Helper()

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		return uri
	}
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	sharedOnce.Do(func() {
		sharedURI, sharedErr = startMongo(context.Background())
	})
	if sharedErr != nil {
		t.Fatalf("Failed to start MongoDB container: %v", sharedErr)
	}
	return sharedURI
}

// DatabaseName returns a database name unique to the running test.
func DatabaseName(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_", ".", "_").Replace(t.Name())
	if len(name) > 40 {
		name = name[:40]
	}
	return fmt.Sprintf("t_%s_%d", name, time.Now().UnixNano()%1e9)
}

func startMongo(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        mongoImage,
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	// the member address is the in-container one; clients connect directly
	exitCode, reader, err := container.Exec(ctx, []string{
		"mongosh", "--quiet", "--eval",
		`rs.initiate({_id: "rs0", members: [{_id: 0, host: "localhost:27017"}]})`,
	})
	if err != nil {
		return "", fmt.Errorf("initiate replica set: %w", err)
	}
	if exitCode != 0 {
		out, _ := io.ReadAll(reader)
		return "", fmt.Errorf("initiate replica set: exit=%d, output=%s", exitCode, out)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		return "", fmt.Errorf("container port: %w", err)
	}

	return fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port.Port()), nil
}
