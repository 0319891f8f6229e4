package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead_engine_backend/internal/channel"
	"lead_engine_backend/internal/leads/repository"
	"lead_engine_backend/internal/lock"
	"lead_engine_backend/platform/config"
	"lead_engine_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
)

func TestNewChannelSelectsKind(t *testing.T) {
	leads := repository.NewMemory()

	ch, err := NewChannel(&config.Config{ChannelKind: config.ChannelLog, ChannelRatePerMinute: 30}, leads, nil, logger.Discard())
	if err != nil {
		t.Fatalf("log channel: %v", err)
	}
	if _, ok := ch.(*channel.Throttled); !ok {
		t.Fatalf("expected the channel to be throttled, got %T", ch)
	}

	if _, err := NewChannel(&config.Config{ChannelKind: config.ChannelWebhook}, leads, nil, logger.Discard()); err == nil {
		t.Fatalf("expected webhook without URL to fail")
	}
	if _, err := NewChannel(&config.Config{ChannelKind: config.ChannelWhatsApp}, leads, nil, logger.Discard()); err == nil {
		t.Fatalf("expected whatsapp without URL to fail")
	}
	if _, err := NewChannel(&config.Config{ChannelKind: "carrier-pigeon"}, leads, nil, logger.Discard()); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
	if _, err := NewChannel(&config.Config{ChannelKind: config.ChannelWebhook, WebhookURL: "http://relay.local/send"}, leads, nil, logger.Discard()); err != nil {
		t.Fatalf("webhook channel: %v", err)
	}
}

func TestNewLockerFallsBackToKeyedMutex(t *testing.T) {
	locker, closeFn, err := NewLocker(&config.Config{}, logger.Discard())
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	defer closeFn()
	if _, ok := locker.(*lock.KeyedMutex); !ok {
		t.Fatalf("expected keyed mutex, got %T", locker)
	}
}

func TestNewLockerUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	locker, closeFn, err := NewLocker(&config.Config{RedisURL: "redis://" + mr.Addr(), LockTTL: time.Second}, logger.Discard())
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	defer closeFn()
	if _, ok := locker.(*lock.RedisLocker); !ok {
		t.Fatalf("expected redis locker, got %T", locker)
	}

	unlock, err := locker.Lock(context.Background(), lock.LeadKey("abc"))
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlock()
}

func TestOpenStoreWithoutDatabaseIsInMemory(t *testing.T) {
	store, err := OpenStore(context.Background(), &config.Config{}, logger.Discard())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()
	if store.Pool != nil {
		t.Fatalf("expected no pool")
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("memory store must be healthy: %v", err)
	}
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), logger.Discard(), "flaky", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got %v after %d calls", err, calls)
	}

	err = WithRetry(context.Background(), logger.Discard(), "broken", 2, time.Millisecond, func() error {
		return errors.New("always")
	})
	if err == nil || err.Error() != "broken: always" {
		t.Fatalf("unexpected error: %v", err)
	}
}
