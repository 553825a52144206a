// Package registry holds confirmed and pending matches.
//
// A match exists at most once per unordered pair of users. Its IsConnected
// flag only ever goes false → true and gates chat initialization.
package registry

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/metrics"
	"github.com/oggyb/devmatch/internal/repository"
)

type Registry struct {
	repo *repository.MatchRepository
	log  *slog.Logger
}

func New(repo *repository.MatchRepository, log *slog.Logger) *Registry {
	return &Registry{repo: repo, log: log.With("module", "registry")}
}

// AddMatch returns the match for {userA, userB}, creating it if needed.
//
// Behavior:
//   - The pair is unordered: AddMatch(a, b) and AddMatch(b, a) hit the same record.
//   - connect=true promotes an existing unconnected match; false never demotes.
//   - created is true only for the call that inserted the record.
func (r *Registry) AddMatch(ctx context.Context, userAID, userBID string, connect bool) (db.Match, bool, error) {
	userAID, err := domain.CheckID("user_a_id", userAID)
	if err != nil {
		return db.Match{}, false, err
	}
	userBID, err = domain.CheckID("user_b_id", userBID)
	if err != nil {
		return db.Match{}, false, err
	}

	match, created, err := r.repo.Ensure(ctx, userAID, userBID, connect)
	if err != nil {
		r.log.Error("add match failed", "user_a", userAID, "user_b", userBID, "err", err)
		return db.Match{}, false, err
	}

	outcome := "existing"
	if created {
		outcome = "created"
	}
	metrics.MatchesTotal.WithLabelValues(outcome).Inc()
	r.log.Debug("match stored", "id", match.ID, "outcome", outcome, "connected", match.IsConnected)
	return match, created, nil
}

// SetConnected flips the match to connected.
// An unknown id is a no-op and returns (nil, false, nil).
func (r *Registry) SetConnected(ctx context.Context, matchID string) (*db.Match, bool, error) {
	match, changed, err := r.repo.SetConnected(ctx, matchID)
	if err != nil {
		return nil, false, err
	}
	if match == nil {
		r.log.Debug("set connected on unknown match", "id", matchID)
		return nil, false, nil
	}
	if changed {
		metrics.MatchesTotal.WithLabelValues("connected").Inc()
	}
	return match, changed, nil
}

// Reject turns down a pending match. Connected matches stay connected.
// An unknown id is a no-op and returns (nil, false, nil).
func (r *Registry) Reject(ctx context.Context, matchID string) (*db.Match, bool, error) {
	match, changed, err := r.repo.Reject(ctx, matchID)
	if err != nil {
		return nil, false, err
	}
	if changed {
		metrics.MatchesTotal.WithLabelValues("rejected").Inc()
	}
	return match, changed, nil
}

// Get returns the match, or nil when the id is unknown.
func (r *Registry) Get(ctx context.Context, matchID string) (*db.Match, error) {
	m, err := r.repo.Get(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MatchesFor returns every match the user is on either side of, newest first.
func (r *Registry) MatchesFor(ctx context.Context, userID string) ([]db.Match, error) {
	return r.repo.ListForUser(ctx, userID)
}

func (r *Registry) CountConnected(ctx context.Context, userID string) (int64, error) {
	return r.repo.CountConnected(ctx, userID)
}
