// Package profile lets a user read and edit their own developer card.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/repository"
)

// Edit is the editable part of a profile. Email and avatar are not.
type Edit struct {
	Name        string   `validate:"required,max=128"`
	Location    string   `validate:"max=128"`
	Bio         string   `validate:"max=1024"`
	Skills      []string `validate:"max=20,dive,max=32"`
	GithubURL   string   `validate:"omitempty,url,max=255"`
	LinkedinURL string   `validate:"omitempty,url,max=255"`
}

// ActivityRecorder logs activity without failing the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, action activity.Action, md activity.Metadata)
}

type Service struct {
	repo     *repository.ProfileRepository
	activity ActivityRecorder
	validate *validator.Validate
	log      *slog.Logger
}

func NewService(repo *repository.ProfileRepository, recorder ActivityRecorder, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		activity: recorder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With("module", "profile"),
	}
}

func (s *Service) Get(ctx context.Context, userID string) (db.Profile, error) {
	userID, err := domain.CheckID("user_id", userID)
	if err != nil {
		return db.Profile{}, err
	}
	return s.repo.Get(ctx, userID)
}

// Update replaces the editable fields of the user's profile.
// Skills are trimmed and de-duplicated, first spelling wins.
func (s *Service) Update(ctx context.Context, userID string, e Edit) (db.Profile, error) {
	userID, err := domain.CheckID("user_id", userID)
	if err != nil {
		return db.Profile{}, err
	}
	e.Name = strings.TrimSpace(e.Name)
	e.Location = strings.TrimSpace(e.Location)
	e.Bio = strings.TrimSpace(e.Bio)
	e.GithubURL = strings.TrimSpace(e.GithubURL)
	e.LinkedinURL = strings.TrimSpace(e.LinkedinURL)
	e.Skills = Skills(e.Skills)
	if err := s.validate.Struct(e); err != nil {
		return db.Profile{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	p, err := s.repo.Update(ctx, db.Profile{
		ID:          userID,
		Name:        e.Name,
		Location:    e.Location,
		Bio:         e.Bio,
		Skills:      e.Skills,
		GithubURL:   e.GithubURL,
		LinkedinURL: e.LinkedinURL,
	})
	if err != nil {
		return db.Profile{}, err
	}
	s.activity.Record(ctx, userID, activity.ActionProfileUpdated, activity.Metadata{})
	s.log.Info("profile updated", "user", userID, "skills", len(p.Skills))
	return p, nil
}

// Skills trims each entry and drops blanks and case-insensitive repeats.
func Skills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, sk := range in {
		sk = strings.TrimSpace(sk)
		key := strings.ToLower(sk)
		if sk == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, sk)
	}
	return out
}
