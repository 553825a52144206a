// Package account implements the mock sign-up and login: bcrypt-checked
// accounts, with token and user kept in local storage.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/latency"
	"github.com/oggyb/devmatch/internal/repository"
)

const (
	RememberTTL = 30 * 24 * time.Hour
	SessionTTL  = 24 * time.Hour
)

// User is the blob stored under the "user" key.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Name      string `json:"name"`
}

type Session struct {
	Token string
	User  User
}

// ActivityRecorder logs activity without failing the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, action activity.Action, md activity.Metadata)
}

type Service struct {
	users    *repository.UserRepository
	store    *cache.RedisCache
	activity ActivityRecorder
	net      *latency.Simulator
	log      *slog.Logger
	now      func() time.Time
	validate *validator.Validate
	cost     int
}

func NewService(
	users *repository.UserRepository,
	store *cache.RedisCache,
	recorder ActivityRecorder,
	net *latency.Simulator,
	log *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		store:    store,
		activity: recorder,
		net:      net,
		log:      log.With("module", "account"),
		now:      func() time.Time { return time.Now().UTC() },
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cost:     bcrypt.DefaultCost,
	}
}

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthenticated)

// Login checks the credentials and stores a fresh token.
//
// Behavior:
//   - Waits the simulated round trip first.
//   - Unknown email or wrong password → ErrUnauthenticated; a failed attempt
//     against a known account is logged in that account's activity.
//   - remember=true keeps token and user for RememberTTL, otherwise SessionTTL.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	if err := s.net.Wait(ctx, "login"); err != nil {
		return Session{}, err
	}

	u, err := s.users.FindActiveByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Info("login rejected", "reason", "unknown email")
		return Session{}, errInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.activity.Record(ctx, u.ID, activity.ActionLoginAttemptFailed, activity.Metadata{Reason: "Invalid credentials"})
		s.log.Info("login rejected", "user", u.ID, "reason", "bad password")
		return Session{}, errInvalidCredentials
	}

	sess, err := s.start(ctx, u, remember)
	if err != nil {
		return Session{}, err
	}
	s.activity.Record(ctx, u.ID, activity.ActionLogin, activity.Metadata{})
	s.log.Info("login", "user", u.ID, "remember", remember)
	return sess, nil
}

// Registration is the sign-up form.
type Registration struct {
	FirstName string `validate:"required,max=64"`
	LastName  string `validate:"required,max=64"`
	Email     string `validate:"required,email,max=128"`
	// bcrypt ignores bytes past 72
	Password string `validate:"required,min=8,max=72"`
}

// Register creates the account and its developer profile, then signs in.
//
// Behavior:
//   - Invalid form → ErrValidation, before any delay.
//   - Waits the simulated round trip.
//   - Email taken (case-insensitive) → ErrConflict.
//   - The new profile joins the swipeable catalog under the account id.
func (s *Service) Register(ctx context.Context, r Registration) (Session, error) {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	if err := s.validate.Struct(r); err != nil {
		return Session{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.net.Wait(ctx, "register"); err != nil {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		return Session{}, err
	}
	u := db.User{
		ID:           uuid.NewString(),
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PasswordHash: string(hash),
		Active:       true,
	}
	p := db.Profile{ID: u.ID, Name: u.FullName(), Email: u.Email}
	if err := s.users.CreateWithProfile(ctx, &u, &p); err != nil {
		return Session{}, err
	}

	sess, err := s.start(ctx, u, false)
	if err != nil {
		return Session{}, err
	}
	s.activity.Record(ctx, u.ID, activity.ActionAccountCreated, activity.Metadata{})
	s.log.Info("registered", "user", u.ID)
	return sess, nil
}

// start stores a fresh token and the user blob for u.
func (s *Service) start(ctx context.Context, u db.User, remember bool) (Session, error) {
	ttl := SessionTTL
	if remember {
		ttl = RememberTTL
	}
	sess := Session{
		Token: uuid.NewString(),
		User: User{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Name:      u.FullName(),
		},
	}
	if err := s.store.SetJSON(ctx, s.store.Key(u.ID, cache.KeyToken), sess.Token, ttl); err != nil {
		return Session{}, err
	}
	if err := s.store.SetJSON(ctx, s.store.Key(u.ID, cache.KeyUser), sess.User, ttl); err != nil {
		return Session{}, err
	}
	if err := s.users.TouchLogin(ctx, u.ID, s.now()); err != nil {
		s.log.Warn("last login not updated", "user", u.ID, "err", err)
	}
	return sess, nil
}

// Logout drops the stored token and user.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID, err := domain.CheckID("user_id", userID)
	if err != nil {
		return err
	}
	if err := s.store.Del(ctx,
		s.store.Key(userID, cache.KeyToken),
		s.store.Key(userID, cache.KeyUser),
	); err != nil {
		return err
	}
	s.activity.Record(ctx, userID, activity.ActionLogout, activity.Metadata{})
	return nil
}

// Validate checks token against the one stored for userID.
func (s *Service) Validate(ctx context.Context, userID, token string) error {
	var stored string
	found, err := s.store.GetJSON(ctx, s.store.Key(userID, cache.KeyToken), &stored)
	if err != nil {
		return err
	}
	if !found || token == "" || stored != token {
		return fmt.Errorf("%w: session expired or invalid", domain.ErrUnauthenticated)
	}
	return nil
}

// CurrentUser returns the stored user blob, false when logged out.
func (s *Service) CurrentUser(ctx context.Context, userID string) (User, bool, error) {
	var u User
	found, err := s.store.GetJSON(ctx, s.store.Key(userID, cache.KeyUser), &u)
	return u, found, err
}
