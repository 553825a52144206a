// Package activity keeps each user's recent activity log in local storage
// (the devmatch_activity_logs key), newest entry first.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/domain"
)

type Category string

const (
	CategorySecurity Category = "Security"
	CategoryProfile  Category = "Profile"
	CategoryMatches  Category = "Matches"
	CategoryReports  Category = "Reports"
	CategoryPrivacy  Category = "Privacy"
)

type Action string

const (
	ActionAccountCreated     Action = "Account Created"
	ActionLogin              Action = "Login"
	ActionLogout             Action = "Logout"
	ActionPasswordChanged    Action = "Password Changed"
	ActionEmailChanged       Action = "Email Changed"
	ActionLoginAttemptFailed Action = "Login Attempt Failed"
	ActionProfileUpdated     Action = "Profile Updated"
	ActionDeveloperLiked     Action = "Developer Liked"
	ActionDeveloperPassed    Action = "Developer Passed"
	ActionMatchCreated       Action = "Match Created"
	ActionMatchAccepted      Action = "Match Accepted"
	ActionMatchRejected      Action = "Match Rejected"
	ActionReportSubmitted    Action = "Report Submitted"
	ActionUserMuted          Action = "User Muted"
	ActionUserUnmuted        Action = "User Unmuted"
	ActionUserBlocked        Action = "User Blocked"
	ActionUserUnblocked      Action = "User Unblocked"
)

var categories = map[Action]Category{
	ActionAccountCreated:     CategorySecurity,
	ActionLogin:              CategorySecurity,
	ActionLogout:             CategorySecurity,
	ActionPasswordChanged:    CategorySecurity,
	ActionEmailChanged:       CategorySecurity,
	ActionLoginAttemptFailed: CategorySecurity,
	ActionProfileUpdated:     CategoryProfile,
	ActionDeveloperLiked:     CategoryMatches,
	ActionDeveloperPassed:    CategoryMatches,
	ActionMatchCreated:       CategoryMatches,
	ActionMatchAccepted:      CategoryMatches,
	ActionMatchRejected:      CategoryMatches,
	ActionReportSubmitted:    CategoryReports,
	ActionUserMuted:          CategoryPrivacy,
	ActionUserUnmuted:        CategoryPrivacy,
	ActionUserBlocked:        CategoryPrivacy,
	ActionUserUnblocked:      CategoryPrivacy,
}

// CategoryOf returns the category of a known action.
func CategoryOf(a Action) (Category, bool) {
	c, ok := categories[a]
	return c, ok
}

// Metadata is the fixed set of optional fields an entry may carry.
type Metadata struct {
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
	MatchID  string `json:"matchId,omitempty"`
	Type     string `json:"type,omitempty"`
	Reason   string `json:"reason,omitempty"`
	NewEmail string `json:"newEmail,omitempty"`
}

type Entry struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Describe renders the human readable line for an action.
func Describe(a Action, md Metadata) string {
	switch a {
	case ActionAccountCreated:
		return "Account was created"
	case ActionLogin:
		return "Successful login to account"
	case ActionLogout:
		return "Successfully logged out of account"
	case ActionPasswordChanged:
		return "Password was successfully updated"
	case ActionEmailChanged:
		if md.NewEmail != "" {
			return "Email address was updated to " + md.NewEmail
		}
		return "Email address was updated"
	case ActionLoginAttemptFailed:
		if md.Reason != "" {
			return fmt.Sprintf("Failed login attempt detected (%s)", md.Reason)
		}
		return "Failed login attempt detected"
	case ActionProfileUpdated:
		return "Profile information was updated"
	case ActionDeveloperLiked:
		return "Showed interest in " + nameOr(md, "a developer")
	case ActionDeveloperPassed:
		return "Passed on " + nameOr(md, "a developer")
	case ActionMatchCreated:
		if md.UserName != "" {
			return "New match with developer " + md.UserName
		}
		return "New match was created"
	case ActionMatchAccepted:
		return joinWords("Match", with(md), "was accepted")
	case ActionMatchRejected:
		return joinWords("Match", with(md), "was rejected")
	case ActionReportSubmitted:
		if md.Type != "" {
			return "Report submitted for " + md.Type
		}
		return "Report submitted"
	case ActionUserMuted:
		return joinWords("User", md.UserName, "was muted")
	case ActionUserUnmuted:
		return joinWords("User", md.UserName, "was unmuted")
	case ActionUserBlocked:
		return joinWords("User", md.UserName, "was blocked")
	case ActionUserUnblocked:
		return joinWords("User", md.UserName, "was unblocked")
	}
	return "Activity recorded"
}

func nameOr(md Metadata, def string) string {
	if md.UserName != "" {
		return md.UserName
	}
	return def
}

func with(md Metadata) string {
	if md.UserName == "" {
		return ""
	}
	return "with " + md.UserName
}

func joinWords(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

const (
	// MaxEntries caps the stored log; older entries fall off.
	MaxEntries = 100
	// DefaultPerPage matches the activity screen page size.
	DefaultPerPage = 5
)

// Filter narrows List. Empty Category (or "All") and empty Query match everything.
type Filter struct {
	Category Category
	Query    string
}

func (f Filter) match(e Entry) bool {
	if f.Category != "" && f.Category != "All" && e.Category != f.Category {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(string(e.Action)), q) ||
			strings.Contains(strings.ToLower(e.Description), q)
	}
	return true
}

// Page is one page of filtered entries.
type Page struct {
	Entries    []Entry
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

// Service reads and writes activity logs.
type Service struct {
	store *cache.RedisCache
	log   *slog.Logger
	now   func() time.Time

	// serializes the read-modify-write of a log blob
	mu sync.Mutex
}

func NewService(store *cache.RedisCache, log *slog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With("module", "activity"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Log builds an entry for action and prepends it to the user's log.
func (s *Service) Log(ctx context.Context, userID string, action Action, md Metadata) (Entry, error) {
	userID, err := domain.CheckID("user_id", userID)
	if err != nil {
		return Entry{}, err
	}
	category, ok := CategoryOf(action)
	if !ok {
		return Entry{}, fmt.Errorf("%w: unknown activity action %q", domain.ErrValidation, action)
	}

	entry := Entry{
		ID:          uuid.NewString(),
		Action:      action,
		Category:    category,
		Description: Describe(action, md),
		Timestamp:   s.now(),
	}
	if md != (Metadata{}) {
		entry.Metadata = &md
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx, userID)
	if err != nil {
		return Entry{}, err
	}
	entries = append([]Entry{entry}, entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	if err := s.store.SetJSON(ctx, s.store.Key(userID, cache.KeyActivityLogs), entries, 0); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Record is the fire-and-forget form of Log: failures are logged and dropped.
func (s *Service) Record(ctx context.Context, userID string, action Action, md Metadata) {
	if _, err := s.Log(ctx, userID, action, md); err != nil {
		s.log.Warn("activity not recorded", "user", userID, "action", action, "err", err)
	}
}

// All returns the whole log, newest first.
func (s *Service) All(ctx context.Context, userID string) ([]Entry, error) {
	return s.load(ctx, userID)
}

// List filters the log and returns the requested 1-based page.
// Out-of-range pages come back empty.
func (s *Service) List(ctx context.Context, userID string, f Filter, page, perPage int) (Page, error) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	entries, err := s.load(ctx, userID)
	if err != nil {
		return Page{}, err
	}

	var matched []Entry
	for _, e := range entries {
		if f.match(e) {
			matched = append(matched, e)
		}
	}

	out := Page{
		Total:      len(matched),
		Page:       page,
		PerPage:    perPage,
		TotalPages: (len(matched) + perPage - 1) / perPage,
	}
	start := (page - 1) * perPage
	if start < len(matched) {
		end := min(start+perPage, len(matched))
		out.Entries = matched[start:end]
	}
	return out, nil
}

// Categories lists the categories present in the user's log, in first-seen order.
func (s *Service) Categories(ctx context.Context, userID string) ([]Category, error) {
	entries, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := map[Category]bool{}
	var out []Category
	for _, e := range entries {
		if !seen[e.Category] {
			seen[e.Category] = true
			out = append(out, e.Category)
		}
	}
	return out, nil
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Del(ctx, s.store.Key(userID, cache.KeyActivityLogs))
}

func (s *Service) load(ctx context.Context, userID string) ([]Entry, error) {
	var entries []Entry
	if _, err := s.store.GetJSON(ctx, s.store.Key(userID, cache.KeyActivityLogs), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
