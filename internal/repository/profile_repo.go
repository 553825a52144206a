package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/db"
)

// ProfileRepository reads the developer catalog and edits single profiles.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// ListExcept returns every profile whose id is not in exclude, in catalog order.
func (r *ProfileRepository) ListExcept(ctx context.Context, exclude []string) ([]db.Profile, error) {
	var profiles []db.Profile
	q := r.db.WithContext(ctx).Order("id ASC")
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	err := q.Find(&profiles).Error
	return profiles, err
}

// Get returns a single profile or gorm.ErrRecordNotFound.
func (r *ProfileRepository) Get(ctx context.Context, id string) (db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return p, err
}

// Update writes the editable fields of p. Returns gorm.ErrRecordNotFound when
// no profile has p.ID.
func (r *ProfileRepository) Update(ctx context.Context, p db.Profile) (db.Profile, error) {
	// existence first: MySQL reports zero affected rows for a no-op update
	if _, err := r.Get(ctx, p.ID); err != nil {
		return db.Profile{}, err
	}
	err := r.db.WithContext(ctx).Model(&db.Profile{}).
		Where("id = ?", p.ID).
		Select("name", "location", "bio", "skills", "github_url", "linkedin_url").
		Updates(&p).Error
	if err != nil {
		return db.Profile{}, err
	}
	return r.Get(ctx, p.ID)
}
