package db

import (
	"time"
)

// User is an account that can log in and swipe.
type User struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	FirstName    string `gorm:"size:64"`
	LastName     string `gorm:"size:64"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Profile is a swipeable developer card from the read-only catalog.
type Profile struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Name        string    `gorm:"size:128;not null"`
	Email       string    `gorm:"size:128"`
	Avatar      string    `gorm:"size:255"`
	Location    string    `gorm:"size:128"`
	Bio         string    `gorm:"size:1024"`
	Skills      []string  `gorm:"serializer:json"`
	GithubURL   string    `gorm:"size:255"`
	LinkedinURL string    `gorm:"size:255"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// Swipe is a swiper's like/pass decision on a swiped profile.
//
// Composite PK: (SwiperID, SwipedID)
//   - One row per directed pair; a re-swipe overwrites IsLiked/UpdatedAt and
//     keeps the original ID and CreatedAt.
//
// Indexes:
//   - idx_swiped_liked_updated(swiped_id, is_liked, updated_at DESC)
//     Serves "who liked me" listing and counting.
//   - the primary key itself answers the O(1) mutual-like lookup.
type Swipe struct {
	ID        string    `gorm:"uniqueIndex;size:36;not null"`
	SwiperID  string    `gorm:"primaryKey;size:64"`
	SwipedID  string    `gorm:"primaryKey;size:64;index:idx_swiped_liked_updated,priority:1"`
	IsLiked   bool      `gorm:"not null;index:idx_swiped_liked_updated,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index:idx_swiped_liked_updated,priority:3,sort:desc"`
}

// Match is a confirmed or pending pairing of two users.
//
// PairLow/PairHigh hold the two ids in canonical order; the unique index on
// them guarantees a single row per unordered pair.
type Match struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserAID     string `gorm:"column:user_a_id;size:64;not null;index"`
	UserBID     string `gorm:"column:user_b_id;size:64;not null;index"`
	PairLow     string `gorm:"size:64;not null;uniqueIndex:idx_match_pair,priority:1"`
	PairHigh    string `gorm:"size:64;not null;uniqueIndex:idx_match_pair,priority:2"`
	IsConnected bool   `gorm:"not null;default:false"`
	ConnectedAt *time.Time
	// RejectedAt is set when a member turns down a pending match.
	// Connecting later still wins.
	RejectedAt *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

const (
	MatchPending  = "pending"
	MatchAccepted = "accepted"
	MatchRejected = "rejected"
)

// Status folds the two flags into one label.
func (m Match) Status() string {
	switch {
	case m.IsConnected:
		return MatchAccepted
	case m.RejectedAt != nil:
		return MatchRejected
	default:
		return MatchPending
	}
}

// Other returns the member of the match that is not userID.
func (m Match) Other(userID string) string {
	if m.UserAID == userID {
		return m.UserBID
	}
	return m.UserAID
}

// ChatThread is the conversation between the two members of a pair.
type ChatThread struct {
	ID            string `gorm:"primaryKey;size:36"`
	UserLow       string `gorm:"size:64;not null;uniqueIndex:idx_chat_pair,priority:1"`
	UserHigh      string `gorm:"size:64;not null;uniqueIndex:idx_chat_pair,priority:2"`
	LastMessageAt *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// Other returns the participant that is not userID.
func (c ChatThread) Other(userID string) string {
	if c.UserLow == userID {
		return c.UserHigh
	}
	return c.UserLow
}

// Has reports whether userID participates in the thread.
func (c ChatThread) Has(userID string) bool {
	return c.UserLow == userID || c.UserHigh == userID
}

type ChatMessage struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ThreadID   string    `gorm:"size:36;not null;index:idx_message_thread_created,priority:1"`
	SenderID   string    `gorm:"size:64;not null"`
	ReceiverID string    `gorm:"size:64;not null;index"`
	Content    string    `gorm:"size:2000;not null"`
	IsRead     bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_message_thread_created,priority:2"`
}

// Notification is the persistent (read/unread) copy of a toast.
type Notification struct {
	ID                string    `gorm:"primaryKey;size:36"`
	UserID            string    `gorm:"size:64;not null;index:idx_notification_user_created,priority:1"`
	Title             string    `gorm:"size:255"`
	Message           string    `gorm:"size:1024"`
	Kind              string    `gorm:"size:16;not null"`
	Link              string    `gorm:"size:255"`
	SourceUserID      string    `gorm:"size:64"`
	MatchID           string    `gorm:"size:36"`
	Read              bool      `gorm:"column:is_read;not null;default:false"`
	DisplayDurationMs int64     `gorm:"not null"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index:idx_notification_user_created,priority:2,sort:desc"`
}

// Report is a moderation report filed against a user or a piece of content.
type Report struct {
	ID           string    `gorm:"primaryKey;size:36"`
	ReporterID   string    `gorm:"size:64;not null;index"`
	Type         string    `gorm:"size:16;not null"`
	TargetID     string    `gorm:"size:64;not null;index"`
	Category     string    `gorm:"size:64;not null"`
	Subcategory  string    `gorm:"size:64;not null"`
	Description  string    `gorm:"size:2000;not null"`
	EvidenceSize int64     `gorm:"not null;default:0"`
	ContactInfo  string    `gorm:"size:200"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{
		&User{}, &Profile{}, &Swipe{}, &Match{},
		&ChatThread{}, &ChatMessage{}, &Notification{}, &Report{},
	}
}
