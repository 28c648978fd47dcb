package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSender stores outbound messages in Redis instead of sending them.
// Integration tests and local development read the last message for a number
// from the "mockwa:<number>" key.
type RedisSender struct {
	client *redis.Client
}

func NewRedisSender(client *redis.Client) Sender {
	return &RedisSender{client: client}
}

func (s *RedisSender) Send(ctx context.Context, to string, message string) error {
	data := map[string]string{
		"to":      to,
		"message": message,
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message data: %w", err)
	}

	key := "mockwa:" + to
	ttl := 5 * time.Minute
	if err := s.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store message in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock WhatsApp message stored in Redis key '%s' (TTL: %v)", key, ttl)
	return nil
}
