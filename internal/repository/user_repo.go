package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// FindActiveByEmail looks up an active account, case-insensitively.
func (r *UserRepository) FindActiveByEmail(ctx context.Context, email string) (db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ? AND active = ?", strings.ToLower(strings.TrimSpace(email)), true).
		First(&u).Error
	return u, err
}

// TouchLogin records a successful login.
func (r *UserRepository) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Update("last_login_at", at).Error
}

// CreateWithProfile stores a new account and its swipeable profile together.
// A taken email (any case, active or not) fails with domain.ErrConflict.
func (r *UserRepository) CreateWithProfile(ctx context.Context, u *db.User, p *db.Profile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&db.User{}).
			Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(u.Email))).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return tx.Create(p).Error
	})
}
