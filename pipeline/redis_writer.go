package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-homedepot/models"
	"github.com/redis/go-redis/v9"
)

// RedisField is the stream entry field holding the JSON record.
const RedisField = "product"

// RedisWriter appends each product as a JSON entry to a Redis stream.
type RedisWriter struct {
	client  *redis.Client
	ctx     context.Context
	stream  string
	mu      sync.Mutex
	written int64
}

// NewRedisWriter connects to addr and checks the server is reachable. ctx
// bounds the connection check only; writes outlive its cancellation so a
// shutdown still flushes what the pipeline has queued.
func NewRedisWriter(ctx context.Context, addr, stream string) (*RedisWriter, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &RedisWriter{client: client, ctx: context.WithoutCancel(ctx), stream: stream}, nil
}

// Write adds one stream entry per product in a single pipelined round trip.
func (rw *RedisWriter) Write(products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	pipe := rw.client.Pipeline()
	for _, p := range products {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode product %s: %w", p.URL, err)
		}
		pipe.XAdd(rw.ctx, &redis.XAddArgs{
			Stream: rw.stream,
			Values: map[string]interface{}{
				RedisField: payload,
			},
		})
	}
	if _, err := pipe.Exec(rw.ctx); err != nil {
		return fmt.Errorf("xadd %s: %w", rw.stream, err)
	}
	rw.written += int64(len(products))
	return nil
}

// Close releases the connection pool.
func (rw *RedisWriter) Close() error {
	return rw.client.Close()
}

// Validate ensures at least one entry was written during this run.
func (rw *RedisWriter) Validate() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.written == 0 {
		return fmt.Errorf("redis stream %s received no products", rw.stream)
	}
	return nil
}
