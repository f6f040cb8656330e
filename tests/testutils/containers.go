package testutils

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/glassflow/batchget/internal/store/postgres"
)

const (
	NATSContainerImage = "nats:latest"
	NATSPort           = "4222/tcp"

	PostgresContainerImage = "postgres:15-alpine"
	PostgresPort           = "5432/tcp"

	reuseContainersEnv = "BATCHGET_REUSE_TESTCONTAINERS"
)

// NATSContainer wraps a NATS testcontainer with JetStream enabled
type NATSContainer struct {
	container testcontainers.Container
	uri       string
}

func StartNATSContainer(ctx context.Context) (*NATSContainer, error) {
	req := testcontainers.ContainerRequest{ //nolint:exhaustruct // optional config
		Name:         "batchget-nats",
		Image:        NATSContainerImage,
		ExposedPorts: []string{NATSPort},
		Cmd:          []string{"-js"},
		WaitingFor: wait.ForListeningPort(NATSPort).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{ //nolint:exhaustruct // optional config
			ContainerRequest: req,
			Started:          true,
			Reuse:            true,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to start NATS container: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, nat.Port(NATSPort))
	if err != nil {
		return nil, fmt.Errorf("failed to get mapped port of NATS container: %w", err)
	}

	return &NATSContainer{
		container: container,
		uri:       "nats://" + net.JoinHostPort("127.0.0.1", mappedPort.Port()),
	}, nil
}

func (n *NATSContainer) GetURI() string {
	return n.uri
}

func (n *NATSContainer) Stop(ctx context.Context) error {
	return stopContainer(ctx, n.container)
}

// PostgresContainer wraps a Postgres testcontainer with the records schema applied
type PostgresContainer struct {
	container testcontainers.Container
	dsn       string
}

func StartPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	req := testcontainers.ContainerRequest{ //nolint:exhaustruct // optional config
		Name:         "batchget-postgres",
		Image:        PostgresContainerImage,
		ExposedPorts: []string{PostgresPort},
		Env: map[string]string{
			"POSTGRES_DB":       "batchget_test",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{ //nolint:exhaustruct // optional config
			ContainerRequest: req,
			Started:          true,
			Reuse:            true,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to start Postgres container: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, nat.Port(PostgresPort))
	if err != nil {
		return nil, fmt.Errorf("failed to get mapped port of Postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Postgres container host: %w", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s/batchget_test?sslmode=disable",
		net.JoinHostPort(host, mappedPort.Port()))

	if err := postgres.Migrate(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresContainer{
		container: container,
		dsn:       dsn,
	}, nil
}

func (p *PostgresContainer) GetDSN() string {
	return p.dsn
}

func (p *PostgresContainer) Stop(ctx context.Context) error {
	return stopContainer(ctx, p.container)
}

func stopContainer(ctx context.Context, container testcontainers.Container) error {
	if os.Getenv(reuseContainersEnv) == "true" {
		return nil
	}

	if err := container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	return nil
}
