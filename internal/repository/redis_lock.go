package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTurnLockTTL = 2 * time.Minute

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisTurnLock serialises chat turns of one session across instances.
type RedisTurnLock struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	tracer trace.Tracer
}

func NewRedisTurnLock(client redis.UniversalClient, ttl time.Duration) (*RedisTurnLock, error) {
	if client == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultTurnLockTTL
	}
	return &RedisTurnLock{
		client: client,
		ttl:    ttl,
		prefix: "chat:turn:",
		tracer: otel.Tracer("sales-assistant.internal.repository"),
	}, nil
}

// Acquire takes the session's turn lock. acquired is false when another
// turn holds it. The lock expires after the TTL if release is never called.
func (l *RedisTurnLock) Acquire(ctx context.Context, sessionID string) (func(), bool, error) {
	ctx, span := l.tracer.Start(ctx, "repository.turn_lock.acquire")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	key := l.prefix + sessionID
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "setnx failed")
		return nil, false, fmt.Errorf("repository: acquire turn lock: %w", err)
	}
	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	if !ok {
		return nil, false, nil
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
