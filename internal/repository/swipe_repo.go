package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/utils/pagination"
)

// SwipeRepository provides data access methods for the Swipe model.
// It encapsulates all queries related to likes/passes between users.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// Upsert inserts or updates the decision made by swiper -> swiped and
// returns the stored row.
//
// Behavior:
//   - If (swiper_id, swiped_id) exists → is_liked and updated_at are overwritten,
//     id and created_at stay as first recorded.
//   - If it doesn’t exist → a new row with a fresh id is inserted.
//
// Example:
//
//	repo.Upsert(ctx, "currentUser", "2", true) // currentUser liked profile 2
func (r *SwipeRepository) Upsert(
	ctx context.Context,
	swiperID, swipedID string,
	liked bool,
) (db.Swipe, error) {
	swipe := db.Swipe{
		ID:       uuid.NewString(),
		SwiperID: swiperID,
		SwipedID: swipedID,
		IsLiked:  liked,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "swiper_id"}, {Name: "swiped_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_liked", "updated_at"}),
		}).Create(&swipe).Error; err != nil {
			return err
		}
		return tx.Where("swiper_id = ? AND swiped_id = ?", swiperID, swipedID).First(&swipe).Error
	})
	if err != nil {
		return db.Swipe{}, err
	}
	return swipe, nil
}

// HasLiked checks whether a swiper has liked a swiped user.
//
// Behavior:
//   - Returns true if there exists a row where swiper_id = X,
//     swiped_id = Y, and is_liked = true.
//   - Primary key lookup, used for mutual-like checks.
func (r *SwipeRepository) HasLiked(
	ctx context.Context,
	swiperID, swipedID string,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("swiper_id = ? AND swiped_id = ? AND is_liked = ?", swiperID, swipedID, true).
		Count(&count).Error
	return count > 0, err
}

// SwipedIDs returns every target the swiper has decided on, liked or not.
func (r *SwipeRepository) SwipedIDs(ctx context.Context, swiperID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("swiper_id = ?", swiperID).
		Order("created_at ASC").
		Pluck("swiped_id", &ids).Error
	return ids, err
}

// CountLikesSent returns how many targets the swiper currently likes.
func (r *SwipeRepository) CountLikesSent(ctx context.Context, swiperID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("swiper_id = ? AND is_liked = ?", swiperID, true).
		Count(&count).Error
	return count, err
}

// passedFilter excludes likers the recipient explicitly passed.
const passedFilter = `
	NOT EXISTS (
		SELECT 1 FROM swipes s2
		WHERE s2.swiper_id = ?
		  AND s2.swiped_id = s.swiper_id
		  AND s2.is_liked = ?
	)`

// CountLikers returns how many users liked the given recipient.
//
// Behavior:
//   - Counts only rows where swiped_id = X and is_liked = true.
//   - Excludes users that the recipient explicitly passed.
func (r *SwipeRepository) CountLikers(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.swiped_id = ? AND s.is_liked = ?", recipientID, true).
		Where(passedFilter, recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetLikers returns the users who liked the given recipient.
//
// Behavior:
//   - Only rows where swiped_id = X and is_liked = true are returned.
//   - Excludes users that the recipient explicitly passed.
//   - Ordered by updated_at DESC, swiper_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.GetLikers(ctx, "currentUser", nil, 20)
func (r *SwipeRepository) GetLikers(
	ctx context.Context,
	recipientID string,
	paginationToken *string,
	limit int,
) ([]db.Swipe, *string, error) {
	var swipes []db.Swipe

	// decode cursor if provided
	cursor, err := pagination.Decode(pagination.Deref(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.swiped_id = ? AND s.is_liked = ?", recipientID, true).
		Where(passedFilter, recipientID, false).
		Order("s.updated_at DESC, s.swiper_id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where(
			"(s.updated_at < ? OR (s.updated_at = ? AND s.swiper_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&swipes).Error; err != nil {
		return nil, nil, err
	}

	swipes, next := pagination.Page(swipes, limit, func(s db.Swipe) pagination.Cursor {
		return pagination.After(s.SwiperID, s.UpdatedAt)
	})
	return swipes, next, nil
}
