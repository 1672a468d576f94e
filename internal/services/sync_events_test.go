package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabsplit/backend/internal/config"
)

func testSyncConfig() *config.SyncConfig {
	return &config.SyncConfig{
		AcceptAllLimit:  2,
		RateLimitWindow: time.Minute,
		EventQueue:      "debt_sync_events",
	}
}

func TestSyncEvents_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("queues events as json", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		events := NewSyncEvents(client, testSyncConfig())

		mock.ExpectRPush("debt_sync_events",
			`{"type":"ACCEPTED","debtId":"D1","accountId":"acc-a","counterpartyAccountId":"acc-b","lockedAt":"2026-06-01T12:00:00Z"}`,
		).SetVal(1)

		err := events.Publish(ctx, SyncEvent{
			Type:                  "ACCEPTED",
			DebtID:                "D1",
			AccountID:             "acc-a",
			CounterpartyAccountID: "acc-b",
			LockedAt:              t1,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("push failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		events := NewSyncEvents(client, testSyncConfig())

		mock.Regexp().ExpectRPush("debt_sync_events", `.*`).SetErr(errors.New("connection refused"))

		err := events.Publish(ctx, SyncEvent{Type: "ACCEPTED", DebtID: "D1", LockedAt: t1})
		assert.EqualError(t, err, "connection refused")
	})

	t.Run("disabled without redis", func(t *testing.T) {
		events := NewSyncEvents(nil, testSyncConfig())
		assert.NoError(t, events.Publish(ctx, SyncEvent{DebtID: "D1"}))
	})
}

func TestSyncEvents_Allow(t *testing.T) {
	ctx := context.Background()
	key := "sync:accept_all:acc-a"

	t.Run("first request opens the window", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		events := NewSyncEvents(client, testSyncConfig())

		mock.ExpectIncr(key).SetVal(1)
		mock.ExpectExpire(key, time.Minute).SetVal(true)

		assert.NoError(t, events.Allow(ctx, "acc-a"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("within limit", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		events := NewSyncEvents(client, testSyncConfig())

		mock.ExpectIncr(key).SetVal(2)

		assert.NoError(t, events.Allow(ctx, "acc-a"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("over limit", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		events := NewSyncEvents(client, testSyncConfig())

		mock.ExpectIncr(key).SetVal(3)

		assert.ErrorIs(t, events.Allow(ctx, "acc-a"), ErrRateLimited)
	})

	t.Run("redis failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		events := NewSyncEvents(client, testSyncConfig())

		mock.ExpectIncr(key).SetErr(errors.New("timeout"))

		err := events.Allow(ctx, "acc-a")
		assert.EqualError(t, err, "rate limit: timeout")
		assert.NotErrorIs(t, err, ErrRateLimited)
	})

	t.Run("bulk accept is refused when limited", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		cfg := testSyncConfig()
		ledger := seedBulkLedger()
		svc := NewDebtSyncService(ledger, ledger, NewSyncEvents(client, cfg), cfg)

		mock.ExpectIncr(key).SetVal(3)

		_, err := svc.AcceptAllIntentions(ctx, accountA)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, 0, ledger.txCount)
	})
}
