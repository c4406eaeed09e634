//go:build integration_pg

package testkit

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresURLEnv points integration tests at a running database instead of a container
const PostgresURLEnv = "EVENTSINK_TEST_PG_URL"

const pgImage = "postgres:16-alpine"

// StartPostgres returns a DSN for a throwaway Postgres playing the warehouse.
// The container goes away in t's cleanup
func StartPostgres(t testing.TB) string {
	t.Helper()
	if dsn := os.Getenv(PostgresURLEnv); dsn != "" {
		return dsn
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	// postgres logs "ready" once for the init server and again for the real one
	ready := wait.ForAll(
		wait.ForListeningPort("5432/tcp"),
		wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	).WithDeadline(2 * time.Minute)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "sink",
				"POSTGRES_PASSWORD": "sink",
				"POSTGRES_DB":       "warehouse",
			},
			WaitingFor: ready,
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", pgImage, err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		t.Fatalf("postgres endpoint: %v", err)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword("sink", "sink"),
		Host:     endpoint,
		Path:     "/warehouse",
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
