package devmatch

import (
	"time"

	"github.com/oggyb/devmatch/internal/account"
	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/chat"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/notify"
	"github.com/oggyb/devmatch/internal/report"
	"github.com/oggyb/devmatch/internal/session"
)

//
// Requests
//

type userRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

func (r userRequest) owner() string { return r.UserID }

type decisionRequest struct {
	UserID      string `json:"user_id" validate:"required,max=64"`
	CandidateID string `json:"candidate_id"`
}

func (r decisionRequest) owner() string { return r.UserID }

type matchRequest struct {
	UserID  string `json:"user_id" validate:"required,max=64"`
	MatchID string `json:"match_id"`
}

func (r matchRequest) owner() string { return r.UserID }

type pageRequest struct {
	UserID    string  `json:"user_id" validate:"required,max=64"`
	PageToken *string `json:"page_token"`
	Limit     int     `json:"limit" validate:"gte=0,lte=100"`
}

func (r pageRequest) owner() string { return r.UserID }

type notificationRequest struct {
	UserID         string `json:"user_id" validate:"required,max=64"`
	NotificationID string `json:"notification_id" validate:"required,max=64"`
}

func (r notificationRequest) owner() string { return r.UserID }

type privacyRequest struct {
	UserID     string `json:"user_id" validate:"required,max=64"`
	TargetID   string `json:"target_id" validate:"required,max=64"`
	TargetName string `json:"target_name" validate:"max=128"`
}

func (r privacyRequest) owner() string { return r.UserID }

type reportRequest struct {
	UserID       string `json:"user_id" validate:"required,max=64"`
	Type         string `json:"type"`
	TargetID     string `json:"target_id"`
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory"`
	Description  string `json:"description"`
	EvidenceSize int64  `json:"evidence_size"`
	ContactInfo  string `json:"contact_info"`
}

func (r reportRequest) owner() string { return r.UserID }

type privacyTargetRequest struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	TargetID string `json:"target_id" validate:"required,max=64"`
}

func (r privacyTargetRequest) owner() string { return r.UserID }

type categoriesRequest struct {
	Type string `json:"type" validate:"omitempty,oneof=user content bug"`
}

type messagesRequest struct {
	UserID    string  `json:"user_id" validate:"required,max=64"`
	ChatID    string  `json:"chat_id" validate:"required,max=64"`
	PageToken *string `json:"page_token"`
	Limit     int     `json:"limit" validate:"gte=0,lte=100"`
}

func (r messagesRequest) owner() string { return r.UserID }

type sendRequest struct {
	UserID  string `json:"user_id" validate:"required,max=64"`
	ChatID  string `json:"chat_id" validate:"required,max=64"`
	Content string `json:"content"`
}

func (r sendRequest) owner() string { return r.UserID }

type activityRequest struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	Category string `json:"category"`
	Query    string `json:"query" validate:"max=200"`
	Page     int    `json:"page" validate:"gte=0"`
	PerPage  int    `json:"per_page" validate:"gte=0,lte=100"`
}

func (r activityRequest) owner() string { return r.UserID }

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// registerRequest leaves the field rules to account.Registration.
type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type profileRequest struct {
	UserID      string   `json:"user_id" validate:"required,max=64"`
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Bio         string   `json:"bio"`
	Skills      []string `json:"skills"`
	GithubURL   string   `json:"github_url"`
	LinkedinURL string   `json:"linkedin_url"`
}

func (r profileRequest) owner() string { return r.UserID }

//
// Views
//

type profileView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	Location    string   `json:"location,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Skills      []string `json:"skills"`
	GithubURL   string   `json:"github_url,omitempty"`
	LinkedinURL string   `json:"linkedin_url,omitempty"`
}

func toProfile(p db.Profile) profileView {
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	return profileView{
		ID:          p.ID,
		Name:        p.Name,
		Email:       p.Email,
		Avatar:      p.Avatar,
		Location:    p.Location,
		Bio:         p.Bio,
		Skills:      skills,
		GithubURL:   p.GithubURL,
		LinkedinURL: p.LinkedinURL,
	}
}

func toProfiles(ps []db.Profile) []profileView {
	out := make([]profileView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProfile(p))
	}
	return out
}

type deckView struct {
	State   session.State `json:"state"`
	Current *profileView  `json:"current,omitempty"`
	Deck    []profileView `json:"deck"`
	Added   int           `json:"added"`
	Error   string        `json:"error,omitempty"`
}

type matchView struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	OtherUserID string     `json:"other_user_id"`
	Status      string     `json:"status"`
	IsConnected bool       `json:"is_connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toMatch(viewer string, m db.Match) matchView {
	return matchView{
		ID:          m.ID,
		UserID:      viewer,
		OtherUserID: m.Other(viewer),
		Status:      m.Status(),
		IsConnected: m.IsConnected,
		ConnectedAt: m.ConnectedAt,
		RejectedAt:  m.RejectedAt,
		CreatedAt:   m.CreatedAt,
	}
}

type decisionView struct {
	Applied bool          `json:"applied"`
	Mutual  bool          `json:"mutual"`
	Match   *matchView    `json:"match,omitempty"`
	State   session.State `json:"state"`
	Current *profileView  `json:"current,omitempty"`
}

type matchResultView struct {
	Match *matchView `json:"match,omitempty"`
}

type matchesView struct {
	Matches []matchView `json:"matches"`
}

type statsView struct {
	LikesSent     int64 `json:"likes_sent"`
	LikesReceived int64 `json:"likes_received"`
	TotalMatches  int64 `json:"total_matches"`
}

type likerView struct {
	UserID  string    `json:"user_id"`
	LikedAt time.Time `json:"liked_at"`
}

type likersView struct {
	Likers        []likerView `json:"likers"`
	NextPageToken *string     `json:"next_page_token,omitempty"`
}

type notificationView struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	Kind              string    `json:"kind"`
	Link              string    `json:"link"`
	SourceUserID      string    `json:"source_user_id,omitempty"`
	MatchID           string    `json:"match_id,omitempty"`
	Read              bool      `json:"read"`
	DisplayDurationMs int64     `json:"display_duration_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

func toNotification(n db.Notification) notificationView {
	return notificationView{
		ID:                n.ID,
		Title:             n.Title,
		Message:           n.Message,
		Kind:              n.Kind,
		Link:              n.Link,
		SourceUserID:      n.SourceUserID,
		MatchID:           n.MatchID,
		Read:              n.Read,
		DisplayDurationMs: n.DisplayDurationMs,
		CreatedAt:         n.CreatedAt,
	}
}

type notificationsView struct {
	Notifications []notificationView `json:"notifications"`
	NextPageToken *string            `json:"next_page_token,omitempty"`
	Unread        int64              `json:"unread"`
}

type updatedView struct {
	Updated int64 `json:"updated"`
}

type privacyView struct {
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

type privacyListsView struct {
	Muted   []string `json:"muted"`
	Blocked []string `json:"blocked"`
}

type privacyStatusView struct {
	Muted   bool `json:"muted"`
	Blocked bool `json:"blocked"`
}

type reportView struct {
	ReportID  string    `json:"report_id"`
	CreatedAt time.Time `json:"created_at"`
}

type reportDetailView struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	TargetID     string    `json:"target_id"`
	Category     string    `json:"category"`
	Subcategory  string    `json:"subcategory"`
	Description  string    `json:"description"`
	EvidenceSize int64     `json:"evidence_size"`
	CreatedAt    time.Time `json:"created_at"`
}

type reportsView struct {
	Reports []reportDetailView `json:"reports"`
}

func toReport(r db.Report) reportDetailView {
	return reportDetailView{
		ID:           r.ID,
		Type:         r.Type,
		TargetID:     r.TargetID,
		Category:     r.Category,
		Subcategory:  r.Subcategory,
		Description:  r.Description,
		EvidenceSize: r.EvidenceSize,
		CreatedAt:    r.CreatedAt,
	}
}

type categoriesView struct {
	Title      string            `json:"title"`
	Categories []report.Category `json:"categories"`
}

type messageView struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

func toMessage(m db.ChatMessage) messageView {
	return messageView{
		ID:         m.ID,
		ChatID:     m.ThreadID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Read:       m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

type chatView struct {
	ID          string       `json:"id"`
	OtherUserID string       `json:"other_user_id"`
	LastMessage *messageView `json:"last_message,omitempty"`
	Unread      int64        `json:"unread"`
}

func toChat(c chat.ThreadSummary) chatView {
	v := chatView{ID: c.Thread.ID, OtherUserID: c.OtherUserID, Unread: c.Unread}
	if c.LastMessage != nil {
		m := toMessage(*c.LastMessage)
		v.LastMessage = &m
	}
	return v
}

type chatsView struct {
	Chats []chatView `json:"chats"`
}

type messagesView struct {
	Messages      []messageView `json:"messages"`
	NextPageToken *string       `json:"next_page_token,omitempty"`
}

type sentView struct {
	Message messageView `json:"message"`
}

type activityView struct {
	Entries    []activity.Entry    `json:"entries"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PerPage    int                 `json:"per_page"`
	TotalPages int                 `json:"total_pages"`
	Categories []activity.Category `json:"categories"`
}

type loginView struct {
	Token string      `json:"token"`
	User  accountUser `json:"user"`
}

type accountUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
}

type currentUserView struct {
	LoggedIn bool         `json:"logged_in"`
	User     *accountUser `json:"user,omitempty"`
}

func toAccountUser(u account.User) accountUser {
	return accountUser{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Name: u.Name}
}

type emptyView struct{}

type toastView struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Kind       notify.Kind    `json:"kind"`
	State      notify.State   `json:"state"`
	DurationMs int64          `json:"duration_ms"`
	Payload    notify.Payload `json:"payload"`
	At         time.Time      `json:"at"`
}

func toToast(ev notify.Event) toastView {
	return toastView{
		ID:         ev.Item.ID,
		Title:      ev.Item.Title,
		Message:    ev.Item.Message,
		Kind:       ev.Item.Kind,
		State:      ev.State,
		DurationMs: ev.Item.Duration.Milliseconds(),
		Payload:    ev.Item.Payload,
		At:         ev.At,
	}
}
