// Package ledger records like/pass decisions and answers mutual-like queries.
// It never creates matches; callers act on IsMutualLike themselves.
package ledger

import (
	"context"
	"log/slog"

	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/metrics"
	"github.com/oggyb/devmatch/internal/repository"
)

// Ledger is the swipe log. One record per (swiper, swiped) pair:
// a re-swipe overwrites the decision and keeps the record id.
type Ledger struct {
	repo *repository.SwipeRepository
	log  *slog.Logger
}

func New(repo *repository.SwipeRepository, log *slog.Logger) *Ledger {
	return &Ledger{repo: repo, log: log.With("module", "ledger")}
}

// RecordSwipe stores swiper's decision about swiped and returns the record.
// Self-swipes are not rejected here.
func (l *Ledger) RecordSwipe(ctx context.Context, swiperID, swipedID string, liked bool) (db.Swipe, error) {
	swiperID, err := domain.CheckID("swiper_id", swiperID)
	if err != nil {
		return db.Swipe{}, err
	}
	swipedID, err = domain.CheckID("swiped_id", swipedID)
	if err != nil {
		return db.Swipe{}, err
	}

	swipe, err := l.repo.Upsert(ctx, swiperID, swipedID, liked)
	if err != nil {
		l.log.Error("record swipe failed", "swiper", swiperID, "swiped", swipedID, "err", err)
		return db.Swipe{}, err
	}
	metrics.SwipesTotal.WithLabelValues(metrics.Decision(liked)).Inc()
	l.log.Debug("swipe recorded", "id", swipe.ID, "swiper", swiperID, "swiped", swipedID, "liked", liked)
	return swipe, nil
}

// IsMutualLike reports whether a liked b and b liked a.
func (l *Ledger) IsMutualLike(ctx context.Context, a, b string) (bool, error) {
	ab, err := l.repo.HasLiked(ctx, a, b)
	if err != nil || !ab {
		return false, err
	}
	return l.repo.HasLiked(ctx, b, a)
}

// SwipedTargets returns every id the user has decided on, liked or passed.
func (l *Ledger) SwipedTargets(ctx context.Context, userID string) (map[string]struct{}, error) {
	ids, err := l.repo.SwipedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// SwipedList is SwipedTargets in first-swipe order.
func (l *Ledger) SwipedList(ctx context.Context, userID string) ([]string, error) {
	return l.repo.SwipedIDs(ctx, userID)
}

func (l *Ledger) CountLikesSent(ctx context.Context, userID string) (int64, error) {
	return l.repo.CountLikesSent(ctx, userID)
}

// CountLikesReceived counts likes toward the user, minus people the user passed.
func (l *Ledger) CountLikesReceived(ctx context.Context, userID string) (int64, error) {
	return l.repo.CountLikers(ctx, userID)
}

// Likers pages through the users who liked userID, newest first.
func (l *Ledger) Likers(ctx context.Context, userID string, token *string, limit int) ([]db.Swipe, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	return l.repo.GetLikers(ctx, userID, token, limit)
}
