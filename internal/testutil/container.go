package testutil

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const startupTimeout = 60 * time.Second

// PostgresContainer is a throwaway PostgreSQL 16 with an empty database.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnectionString string
}

// RedisContainer backs the redis scan lock.
type RedisContainer struct {
	testcontainers.Container
	Addr string
}

// MailpitContainer accepts SMTP on one port and exposes the received mail
// over a REST API on another.
type MailpitContainer struct {
	testcontainers.Container
	SMTPHost string
	SMTPPort int
	APIHost  string
	APIPort  int
}

// NewPostgresContainer starts PostgreSQL. Migrations are left to the app.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("slatracker"),
		postgres.WithUsername("slatracker"),
		postgres.WithPassword("slatracker"),
		testcontainers.WithWaitStrategy(
			// The server logs readiness once for the init run and once for real.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	return &PostgresContainer{PostgresContainer: container, ConnectionString: dsn}, nil
}

// NewRedisContainer starts Redis 7.
func NewRedisContainer(ctx context.Context) (*RedisContainer, error) {
	c, endpoints, err := startService(ctx, "redis:7-alpine",
		wait.ForLog("Ready to accept connections"), "6379/tcp")
	if err != nil {
		return nil, fmt.Errorf("start redis: %w", err)
	}
	return &RedisContainer{Container: c, Addr: endpoints["6379/tcp"].String()}, nil
}

// NewMailpitContainer starts Mailpit with SMTP on 1025 and the API on 8025.
func NewMailpitContainer(ctx context.Context) (*MailpitContainer, error) {
	c, endpoints, err := startService(ctx, "ghcr.io/axllent/mailpit:latest",
		wait.ForHTTP("/api/v1/info").WithPort("8025/tcp"), "1025/tcp", "8025/tcp")
	if err != nil {
		return nil, fmt.Errorf("start mailpit: %w", err)
	}
	smtp, api := endpoints["1025/tcp"], endpoints["8025/tcp"]
	return &MailpitContainer{
		Container: c,
		SMTPHost:  smtp.Host,
		SMTPPort:  smtp.Port,
		APIHost:   api.Host,
		APIPort:   api.Port,
	}, nil
}

// Endpoint is a container port as reachable from the test process.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, fmt.Sprint(e.Port))
}

// startService runs image, waits until every port listens and ready
// passes, and resolves the mapped endpoints.
func startService(ctx context.Context, image string, ready wait.Strategy, ports ...string) (testcontainers.Container, map[string]Endpoint, error) {
	strategies := make([]wait.Strategy, 0, len(ports)+1)
	for _, p := range ports {
		strategies = append(strategies, wait.ForListeningPort(nat.Port(p)))
	}
	strategies = append(strategies, ready)

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: ports,
			WaitingFor:   wait.ForAll(strategies...).WithDeadline(startupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, err
	}

	host, err := c.Host(ctx)
	if err != nil {
		return c, nil, fmt.Errorf("container host: %w", err)
	}

	endpoints := make(map[string]Endpoint, len(ports))
	for _, p := range ports {
		mapped, err := c.MappedPort(ctx, nat.Port(p))
		if err != nil {
			return c, nil, fmt.Errorf("mapped port %s: %w", p, err)
		}
		endpoints[p] = Endpoint{Host: host, Port: mapped.Int()}
	}
	return c, endpoints, nil
}
