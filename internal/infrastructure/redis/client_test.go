package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/nerrad567/schoolhub-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("HealthCheck() on nil client error = %v, want ErrDisabled", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

// TestConnect_Live needs a reachable server in SCHOOLHUB_TEST_REDIS.
func TestConnect_Live(t *testing.T) {
	addr := os.Getenv("SCHOOLHUB_TEST_REDIS")
	if addr == "" {
		t.Skip("SCHOOLHUB_TEST_REDIS not set")
	}

	c, err := Connect(t.Context(), config.RedisConfig{Enabled: true, Addr: addr})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if err := c.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
