package testsupport

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresEnv gates container-backed tests.
const PostgresEnv = "SHOTDECK_TEST_POSTGRES"

// StartPostgres runs a disposable postgres:15 container and returns its DSN.
// The test is skipped unless SHOTDECK_TEST_POSTGRES=1.
func StartPostgres(t testing.TB) string {
	t.Helper()

	if os.Getenv(PostgresEnv) != "1" {
		t.Skipf("set %s=1 to run PostgreSQL tests", PostgresEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "shotdeck",
			"POSTGRES_PASSWORD": "shotdeck",
			"POSTGRES_DB":       "shotdeck",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://shotdeck:shotdeck@%s:%s/shotdeck?sslmode=disable", host, port.Port())
}
