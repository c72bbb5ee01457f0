//go:build integration
// +build integration

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/finearr/finearr/internal/config"
	"github.com/finearr/finearr/internal/models"
	"github.com/finearr/finearr/internal/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRabbitMQ(t *testing.T) (*config.RabbitMQConfig, func()) {
	broker := testutil.SetupTestBroker(t)

	cfg := &config.RabbitMQConfig{
		Enabled:  true,
		Host:     broker.Host,
		Port:     broker.Port,
		User:     "guest",
		Password: "guest",
		Exchange: "finearr.test",
	}

	return cfg, func() { broker.Cleanup(t) }
}

func TestMessagePublisher_PublishLedgerEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	mp, err := NewMessagePublisher(cfg)
	require.NoError(t, err)
	defer mp.Close()

	// Bind a private queue to observe what is published.
	conn, err := amqp.Dial(fmt.Sprintf("amqp://guest:guest@%s:%d/", cfg.Host, cfg.Port))
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "request.*", cfg.Exchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	entry := models.RequestEntry{
		MediaItem: models.MediaItem{ID: "tt0133093", Title: "The Matrix"},
		Category:  models.CategoryMovie,
	}
	event := newLedgerEvent(EventRequestApproved, entry, "admin")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, mp.Publish(ctx, event))

	select {
	case d := <-deliveries:
		assert.Equal(t, EventRequestApproved, d.RoutingKey)
		assert.Equal(t, event.ID.String(), d.MessageId)

		var got LedgerEvent
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, "tt0133093", got.ItemID)
		assert.Equal(t, "admin", got.Actor)
	case <-ctx.Done():
		t.Fatal("no delivery received")
	}
}

func TestMessagePublisher_PublishManyEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	mp, err := NewMessagePublisher(cfg)
	require.NoError(t, err)
	defer mp.Close()

	entry := models.RequestEntry{
		MediaItem: models.MediaItem{ID: "73739", Title: "Lost"},
		Category:  models.CategoryShow,
	}

	for i := 0; i < 8; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		start := time.Now()
		err := mp.Publish(ctx, newLedgerEvent(EventRequestPending, entry, "alice"))
		cancel()

		require.NoError(t, err, "event %d", i)
		assert.Less(t, time.Since(start), time.Second, "event %d waited for its confirm", i)
	}
}

func TestMessagePublisher_IsHealthy(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	mp, err := NewMessagePublisher(cfg)
	require.NoError(t, err)

	assert.True(t, mp.IsHealthy())

	require.NoError(t, mp.Close())
	assert.False(t, mp.IsHealthy())
}

func TestNewMessagePublisher_Unreachable(t *testing.T) {
	_, err := NewMessagePublisher(&config.RabbitMQConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "guest",
		Password: "guest",
		Exchange: "finearr.test",
	})
	assert.Error(t, err)
}
