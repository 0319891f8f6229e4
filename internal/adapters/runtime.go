// Package adapters builds the infrastructure shared by the API and scheduler
// binaries: storage, the outbound channel and the per-lead locker.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_engine_backend/internal/channel"
	"lead_engine_backend/internal/email"
	"lead_engine_backend/internal/leads/repository"
	"lead_engine_backend/internal/lock"
	"lead_engine_backend/internal/whatsapp"
	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/config"
	"lead_engine_backend/platform/db"
	"lead_engine_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is an opened storage backend.
type Store struct {
	repository.Store
	// Pool is nil for the in-memory backend.
	Pool *pgxpool.Pool
}

// Ping reports storage health. The in-memory backend is always healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// Close releases the pool, if any.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStore connects to Postgres and applies migrations, or falls back to the
// in-memory store when no database URL is configured.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	if cfg.GetDatabaseURL() == "" {
		log.Warn("DATABASE_URL not configured; using in-memory store")
		return &Store{Store: repository.NewMemory()}, nil
	}

	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connection established")

	if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations complete")

	return &Store{Store: repository.New(pool), Pool: pool}, nil
}

// NewChannel builds the configured outbound channel behind the rate limit and
// dispatch timeout.
func NewChannel(cfg config.ChannelConfig, leads channel.LeadLookup, clk clock.Clock, log *logger.Logger) (channel.Channel, error) {
	var ch channel.Channel
	switch kind := cfg.GetChannelKind(); kind {
	case config.ChannelWebhook:
		if cfg.GetWebhookURL() == "" {
			return nil, errors.New("CHANNEL_KIND=webhook requires WEBHOOK_URL")
		}
		ch = channel.NewWebhook(cfg, clk)
	case config.ChannelWhatsApp:
		if cfg.GetWhatsAppURL() == "" {
			return nil, errors.New("CHANNEL_KIND=whatsapp requires WHATSAPP_URL")
		}
		ch = whatsapp.NewChannel(whatsapp.NewClient(cfg, log), leads)
	case config.ChannelEmail:
		if cfg.GetSMTPHost() == "" {
			return nil, errors.New("CHANNEL_KIND=email requires SMTP_HOST")
		}
		ch = email.NewChannel(email.NewSMTPSender(cfg), leads, nil)
	case config.ChannelLog, "":
		ch = channel.NewLog(log)
	default:
		return nil, fmt.Errorf("unknown channel kind %q", kind)
	}

	log.Info("message channel configured", "kind", cfg.GetChannelKind(), "ratePerMinute", cfg.GetChannelRatePerMinute())
	return channel.NewThrottled(ch, cfg.GetChannelRatePerMinute(), cfg.GetDispatchTimeout()), nil
}

// NewLocker returns a Redis locker shared across instances when Redis is
// configured, otherwise a process-local keyed mutex.
func NewLocker(cfg config.LockConfig, log *logger.Logger) (lock.Locker, func(), error) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; per-lead locks are process-local")
		return lock.NewKeyedMutex(), func() {}, nil
	}

	client, err := lock.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedisLocker(client, cfg.GetLockTTL(), log), func() { _ = client.Close() }, nil
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
