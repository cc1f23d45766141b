package badges

import (
	"context"
	"errors"
	"log"
	"time"

	"studyquiz/internal/domain"
	"golang.org/x/sync/errgroup"
)

// AttemptReader returns a user's attempt history.
type AttemptReader interface {
	ListByUser(ctx context.Context, userID string) ([]domain.AttemptRecord, error)
}

// AwardStore persists awarded badges keyed by (userID, badgeID).
// Award must be idempotent; created is true only for the call that inserted.
type AwardStore interface {
	ListAwarded(ctx context.Context, userID string) ([]domain.AwardedBadge, error)
	Award(ctx context.Context, userID string, badgeID domain.BadgeID, earnedAt time.Time) (created bool, err error)
}

// Engine grants badges from a user's attempt history. Badges are never revoked.
type Engine struct {
	catalog  Catalog
	attempts AttemptReader
	awards   AwardStore
	loc      *time.Location
	now      func() time.Time
}

func NewEngine(catalog Catalog, attempts AttemptReader, awards AwardStore, loc *time.Location) *Engine {
	return NewEngineWithClock(catalog, attempts, awards, loc, time.Now)
}

// NewEngineWithClock allows deterministic earnedAt timestamps in tests.
func NewEngineWithClock(catalog Catalog, attempts AttemptReader, awards AwardStore, loc *time.Location, now func() time.Time) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{catalog: catalog, attempts: attempts, awards: awards, loc: loc, now: now}
}

// Catalog returns the catalog the engine evaluates.
func (e *Engine) Catalog() Catalog { return e.catalog }

// Evaluate awards every unearned badge the user now qualifies for and returns
// the ids this run inserted. A failed award does not stop the others; the
// failures come back joined as *domain.PersistenceError values.
func (e *Engine) Evaluate(ctx context.Context, userID string) ([]domain.BadgeID, error) {
	var (
		history []domain.AttemptRecord
		awarded []domain.AwardedBadge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = e.attempts.ListByUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		awarded, err = e.awards.ListAwarded(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	earned := make(map[domain.BadgeID]struct{}, len(awarded))
	for _, a := range awarded {
		earned[a.BadgeID] = struct{}{}
	}

	var (
		granted []domain.BadgeID
		errs    []error
	)
	earnedAt := e.now()
	for _, def := range Pending(e.catalog, history, earned, e.loc) {
		created, err := e.awards.Award(ctx, userID, def.ID, earnedAt)
		if err != nil {
			log.Printf("award badge %d to %s: %v", def.ID, userID, err)
			errs = append(errs, &domain.PersistenceError{Op: "award badge", Err: err})
			continue
		}
		if created {
			granted = append(granted, def.ID)
		}
	}
	return granted, errors.Join(errs...)
}
