package server

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kiwinews/delegation-api/internal/db"
	"github.com/kiwinews/delegation-api/internal/indexer"
	"github.com/kiwinews/delegation-api/internal/logger"
)

// StateSyncer periodically mirrors the indexer's delegation and allowlist
// state into the database so eligibility checks never block on the indexer.
type StateSyncer struct {
	queries  db.Querier
	client   *indexer.Client
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStateSyncer creates a syncer polling the indexer at the given interval.
func NewStateSyncer(queries db.Querier, client *indexer.Client, interval time.Duration) *StateSyncer {
	return &StateSyncer{
		queries:  queries,
		client:   client,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the background sync loop. An immediate sync runs first so
// the mirror is warm before the first tick.
func (s *StateSyncer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)

		if err := s.syncOnce(ctx); err != nil {
			logger.Error("Initial state sync failed", zap.Error(err))
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.syncOnce(ctx); err != nil {
					logger.Error("State sync failed", zap.Error(err))
				}
			}
		}
	}()
	logger.Info("State syncer started", zap.Duration("interval", s.interval))
}

// Stop terminates the sync loop and waits for it to exit.
func (s *StateSyncer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	logger.Info("State syncer stopped")
}

// syncOnce pulls both read endpoints and reconciles the mirror. Delegation
// records are upserted, never deleted: a revocation arrives as
// authorized=false and must stay visible to eligibility resolution.
func (s *StateSyncer) syncOnce(ctx context.Context) error {
	delegations, err := s.client.Delegations(ctx)
	if err != nil {
		return err
	}
	for delegate, record := range delegations {
		_, err := s.queries.UpsertDelegation(ctx, db.UpsertDelegationParams{
			Owner:      strings.ToLower(record.Owner.Hex()),
			Delegate:   strings.ToLower(delegate.Hex()),
			Authorized: record.Authorized,
		})
		if err != nil {
			return err
		}
	}

	allowlist, err := s.client.Allowlist(ctx)
	if err != nil {
		return err
	}
	current := make(map[string]bool, len(allowlist))
	for _, addr := range allowlist {
		lower := strings.ToLower(addr.Hex())
		current[lower] = true
		if _, err := s.queries.UpsertAllowlistEntry(ctx, lower); err != nil {
			return err
		}
	}

	existing, err := s.queries.ListAllowlist(ctx)
	if err != nil {
		return err
	}
	for _, entry := range existing {
		if !current[entry.Address] {
			if err := s.queries.DeleteAllowlistEntry(ctx, entry.Address); err != nil {
				return err
			}
		}
	}
	return nil
}
