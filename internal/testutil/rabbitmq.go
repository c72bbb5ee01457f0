package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestBroker is a RabbitMQ container reachable on Host:Port.
type TestBroker struct {
	Container *rabbitmq.RabbitMQContainer
	Host      string
	Port      int
}

// SetupTestBroker starts a RabbitMQ container.
func SetupTestBroker(t *testing.T) *TestBroker {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return &TestBroker{
		Container: container,
		Host:      host,
		Port:      port.Int(),
	}
}

// Cleanup terminates the container.
func (tb *TestBroker) Cleanup(t *testing.T) {
	if tb.Container != nil {
		require.NoError(t, tb.Container.Terminate(context.Background()))
	}
}
