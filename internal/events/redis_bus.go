package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

type redisBus struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisBus(log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log: log.With("service", "RedisBus"),
		rdb: rdb,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, routingKey string, env Envelope) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, routingKey, raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, routingKey string, handler func(ctx context.Context, env Envelope) error) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	if handler == nil {
		return fmt.Errorf("handler required")
	}

	sub := b.rdb.Subscribe(ctx, routingKey)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.log.Warn("bad bus payload", "routing_key", routingKey, "error", err)
					continue
				}
				if err := handler(ctx, env); err != nil {
					b.log.Error("handler rejected message",
						"routing_key", routingKey,
						"type", env.Type,
						"correlation_id", env.CorrelationID,
						"error", err)
					if pubErr := b.rdb.Publish(ctx, routingKey+DeadLetterSuffix, m.Payload).Err(); pubErr != nil {
						b.log.Error("dead-letter publish failed", "routing_key", routingKey, "error", pubErr)
					}
				}
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
