package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tabsplit/backend/internal/config"
)

// SyncEvent tells the counterparty's clients that a shared debt settled.
type SyncEvent struct {
	Type                  string    `json:"type"`
	DebtID                string    `json:"debtId"`
	AccountID             string    `json:"accountId"`
	CounterpartyAccountID string    `json:"counterpartyAccountId"`
	LockedAt              time.Time `json:"lockedAt"`
}

// SyncEvents queues settlement notifications and rate limits bulk accepts
// through Redis. A nil client disables both.
type SyncEvents struct {
	redis  *redis.Client
	queue  string
	limit  int
	window time.Duration
}

func NewSyncEvents(client *redis.Client, cfg *config.SyncConfig) *SyncEvents {
	return &SyncEvents{
		redis:  client,
		queue:  cfg.EventQueue,
		limit:  cfg.AcceptAllLimit,
		window: cfg.RateLimitWindow,
	}
}

func (e *SyncEvents) enabled() bool {
	return e != nil && e.redis != nil
}

// Publish appends events to the queue in one RPUSH.
func (e *SyncEvents) Publish(ctx context.Context, events ...SyncEvent) error {
	if !e.enabled() || len(events) == 0 {
		return nil
	}

	payloads := make([]interface{}, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal sync event: %w", err)
		}
		payloads = append(payloads, string(data))
	}

	return e.redis.RPush(ctx, e.queue, payloads...).Err()
}

// Allow counts one bulk accept for accountID in the current window.
func (e *SyncEvents) Allow(ctx context.Context, accountID string) error {
	if !e.enabled() || e.limit <= 0 {
		return nil
	}

	key := fmt.Sprintf("sync:accept_all:%s", accountID)
	count, err := e.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if count == 1 {
		if err := e.redis.Expire(ctx, key, e.window).Err(); err != nil {
			log.Printf("[SYNC_EVENTS] Failed to set rate limit window for %s: %v", accountID, err)
		}
	}

	if count > int64(e.limit) {
		return ErrRateLimited
	}
	return nil
}
