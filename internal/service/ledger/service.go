// Package ledger implements the purchase and sale mutations. Every mutation appends to or rewrites a
// log document and keeps the product stock buckets in step, inside a single store transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
)

// Invalidator drops cached read models of a tenant after a committed mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// Recorder receives mutation telemetry.
type Recorder interface {
	ObserveMutation(op string, err error, elapsed time.Duration)
	ObserveConflict(op string)
}

// Config tunes conflict retries.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Service is the mutation engine.
type Service struct {
	store      repository.Store
	cache      Invalidator
	recorder   Recorder
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
	maxRetries int
	backoff    time.Duration
}

// NewService wires the mutation engine. cache and recorder may be nil.
func NewService(store repository.Store, cache Invalidator, recorder Recorder, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 25 * time.Millisecond
	}
	return &Service{
		store:      store,
		cache:      cache,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
}

// mutate runs fn in a transaction and retries it when a concurrent writer wins the race.
func (s *Service) mutate(ctx context.Context, op, tenantID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", models.ErrValidation)
	}

	start := time.Now()
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.store.RunInTx(ctx, tenantID, fn)
		if !errors.Is(err, models.ErrConflict) {
			break
		}

		if s.recorder != nil {
			s.recorder.ObserveConflict(op)
		}
		s.logger.Warn("mutation conflict",
			zap.String("op", op),
			zap.String("tenant", tenantID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == s.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}

	if s.recorder != nil {
		s.recorder.ObserveMutation(op, err, time.Since(start))
	}
	if err != nil {
		return err
	}

	if s.cache != nil {
		if cerr := s.cache.Invalidate(ctx, tenantID); cerr != nil {
			s.logger.Warn("snapshot cache invalidation failed", zap.String("tenant", tenantID), zap.Error(cerr))
		}
	}
	s.logger.Info("mutation committed", zap.String("op", op), zap.String("tenant", tenantID))
	return nil
}

// uniqueID returns id, or id suffixed with the current timestamp when taken already reports it in use.
func uniqueID(id string, taken func(string) bool, now time.Time) string {
	if !taken(id) {
		return id
	}
	stamp := now.UnixMilli()
	candidate := fmt.Sprintf("%s-%d", id, stamp)
	for n := 1; taken(candidate); n++ {
		candidate = fmt.Sprintf("%s-%d-%d", id, stamp, n)
	}
	return candidate
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", models.ErrValidation, field)
	}
	return nil
}
