package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
)

// MatchRepository stores matches keyed by their canonical unordered pair.
type MatchRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database, now: func() time.Time { return time.Now().UTC() }}
}

// Ensure inserts a match for {userA, userB} unless one already exists for the
// pair in either order, then returns the stored row.
//
// Behavior:
//   - Insert-or-ignore on the (pair_low, pair_high) unique index, so two
//     concurrent callers still end up with a single row.
//   - connect=true promotes an existing unconnected row; nothing ever demotes.
//   - created reports whether this call inserted the row.
func (r *MatchRepository) Ensure(
	ctx context.Context,
	userAID, userBID string,
	connect bool,
) (match db.Match, created bool, err error) {
	low, high := domain.OrderedPair(userAID, userBID)
	candidate := db.Match{
		ID:          uuid.NewString(),
		UserAID:     userAID,
		UserBID:     userBID,
		PairLow:     low,
		PairHigh:    high,
		IsConnected: connect,
	}
	if connect {
		now := r.now()
		candidate.ConnectedAt = &now
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_low"}, {Name: "pair_high"}},
			DoNothing: true,
		}).Create(&candidate).Error; err != nil {
			return err
		}
		if err := tx.Where("pair_low = ? AND pair_high = ?", low, high).First(&match).Error; err != nil {
			return err
		}
		created = match.ID == candidate.ID

		if connect && !match.IsConnected {
			promoted, err := promote(tx, match.ID, r.now())
			if err != nil {
				return err
			}
			if promoted != nil {
				match = *promoted
			}
		}
		return nil
	})
	if err != nil {
		return db.Match{}, false, err
	}
	return match, created, nil
}

// SetConnected flips is_connected on the given match.
// Returns (nil, false, nil) for an unknown id; changed is false when the
// match was already connected.
func (r *MatchRepository) SetConnected(ctx context.Context, matchID string) (*db.Match, bool, error) {
	var (
		out     *db.Match
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		promoted, err := promote(tx, matchID, r.now())
		if err != nil {
			return err
		}
		if promoted != nil {
			out, changed = promoted, true
			return nil
		}
		var existing db.Match
		err = tx.Where("id = ?", matchID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &existing
		return nil
	})
	return out, changed, err
}

// Reject marks a pending match as turned down.
// Returns (nil, false, nil) for an unknown id; changed is false when the
// match is connected or was already rejected.
func (r *MatchRepository) Reject(ctx context.Context, matchID string) (*db.Match, bool, error) {
	res := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("id = ? AND is_connected = ? AND rejected_at IS NULL", matchID, false).
		Update("rejected_at", r.now())
	if res.Error != nil {
		return nil, false, res.Error
	}
	m, err := r.Get(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &m, res.RowsAffected > 0, nil
}

// promote sets is_connected only where it is still false, which keeps the
// flag monotonic under concurrent callers. Returns nil if nothing changed.
func promote(tx *gorm.DB, matchID string, now time.Time) (*db.Match, error) {
	res := tx.Model(&db.Match{}).
		Where("id = ? AND is_connected = ?", matchID, false).
		Updates(map[string]any{"is_connected": true, "connected_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	var m db.Match
	if err := tx.Where("id = ?", matchID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Get returns the match by id, or gorm.ErrRecordNotFound.
func (r *MatchRepository) Get(ctx context.Context, matchID string) (db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).Where("id = ?", matchID).First(&m).Error
	return m, err
}

// ListForUser returns matches where the user is on either side, newest first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID string) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&matches).Error
	return matches, err
}

// CountConnected counts connected matches the user belongs to.
func (r *MatchRepository) CountConnected(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("(user_a_id = ? OR user_b_id = ?) AND is_connected = ?", userID, userID, true).
		Count(&count).Error
	return count, err
}
