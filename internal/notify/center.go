package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/repository"
)

// DefaultLink is where a notification points when the caller gives no link.
const DefaultLink = "/notifications"

// Note is a notification as callers describe it.
type Note struct {
	Title   string
	Message string
	Kind    Kind
	// Duration overrides the kind default display time.
	Duration time.Duration
	Payload  Payload
}

// Options configure a Center.
type Options struct {
	Durations Durations
	Gap       time.Duration
}

// Center keeps each user's persistent notification list and the per-user
// sequencers that display them.
//
// Notes whose Payload.SourceUserID is muted by the recipient are persisted
// but never shown as a toast.
type Center struct {
	repo  *repository.NotificationRepository
	store *cache.RedisCache
	opts  Options
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	sequencers map[string]*Sequencer
	closed     bool
}

func NewCenter(repo *repository.NotificationRepository, store *cache.RedisCache, opts Options, log *slog.Logger) *Center {
	if opts.Durations == (Durations{}) {
		opts.Durations = DefaultDurations()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Center{
		repo:       repo,
		store:      store,
		opts:       opts,
		log:        log.With("module", "notify"),
		ctx:        ctx,
		cancel:     cancel,
		sequencers: map[string]*Sequencer{},
	}
}

// Sequencer returns the user's display queue, starting its consumer on first use.
// After Close it returns a stopped sequencer that never displays anything.
func (c *Center) Sequencer(userID string) *Sequencer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sequencers[userID]; ok {
		return s
	}
	s := NewSequencer(c.opts.Durations, c.opts.Gap, c.log.With("user", userID))
	if c.closed {
		s.Stop()
		return s
	}
	c.sequencers[userID] = s

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = s.Run(c.ctx)
	}()
	return s
}

// Close stops every consumer loop and closes their subscriber channels.
// Safe to call more than once.
func (c *Center) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Notify persists the note and queues it behind earlier toasts.
func (c *Center) Notify(ctx context.Context, userID string, note Note) (db.Notification, error) {
	return c.deliver(ctx, userID, note, false)
}

// NotifyUrgent persists the note and jumps the display queue with it.
func (c *Center) NotifyUrgent(ctx context.Context, userID string, note Note) (db.Notification, error) {
	return c.deliver(ctx, userID, note, true)
}

func (c *Center) Info(ctx context.Context, userID, title, message string) (db.Notification, error) {
	return c.Notify(ctx, userID, Note{Title: title, Message: message, Kind: KindInfo})
}

func (c *Center) Success(ctx context.Context, userID, title, message string) (db.Notification, error) {
	return c.Notify(ctx, userID, Note{Title: title, Message: message, Kind: KindSuccess})
}

func (c *Center) Warning(ctx context.Context, userID, title, message string) (db.Notification, error) {
	return c.Notify(ctx, userID, Note{Title: title, Message: message, Kind: KindWarning})
}

func (c *Center) Error(ctx context.Context, userID, title, message string) (db.Notification, error) {
	return c.Notify(ctx, userID, Note{Title: title, Message: message, Kind: KindError})
}

func (c *Center) deliver(ctx context.Context, userID string, note Note, urgent bool) (db.Notification, error) {
	userID, err := domain.CheckID("user_id", userID)
	if err != nil {
		return db.Notification{}, err
	}
	if note.Kind == "" {
		note.Kind = KindInfo
	}
	if note.Duration <= 0 {
		note.Duration = c.opts.Durations.For(note.Kind)
	}
	if note.Payload.Link == "" {
		note.Payload.Link = DefaultLink
	}

	n := db.Notification{
		ID:                uuid.NewString(),
		UserID:            userID,
		Title:             note.Title,
		Message:           note.Message,
		Kind:              string(note.Kind),
		Link:              note.Payload.Link,
		SourceUserID:      note.Payload.SourceUserID,
		MatchID:           note.Payload.MatchID,
		DisplayDurationMs: note.Duration.Milliseconds(),
	}
	if err := c.repo.Create(ctx, &n); err != nil {
		c.log.Error("persist notification failed", "user", userID, "title", note.Title, "err", err)
		return db.Notification{}, err
	}

	if c.muted(ctx, userID, note.Payload.SourceUserID) {
		c.log.Debug("toast suppressed, source muted", "user", userID, "source", note.Payload.SourceUserID)
		return n, nil
	}

	item := Item{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Kind:      note.Kind,
		CreatedAt: n.CreatedAt,
		Duration:  note.Duration,
		Payload:   note.Payload,
	}
	seq := c.Sequencer(userID)
	if urgent {
		seq.Jump(item)
	} else {
		seq.Enqueue(item)
	}
	return n, nil
}

// muted fails open: a broken mute list still shows the toast.
func (c *Center) muted(ctx context.Context, userID, sourceID string) bool {
	if sourceID == "" || c.store == nil {
		return false
	}
	ok, err := c.store.InIDSet(ctx, userID, cache.KeyMutedUsers, sourceID)
	if err != nil {
		c.log.Warn("mute lookup failed", "user", userID, "err", err)
		return false
	}
	return ok
}

// List pages through the user's notifications, newest first.
func (c *Center) List(ctx context.Context, userID string, token *string, limit int) ([]db.Notification, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	return c.repo.ListForUser(ctx, userID, token, limit)
}

func (c *Center) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return c.repo.CountUnread(ctx, userID)
}

// MarkRead is a no-op for unknown or already-read ids.
func (c *Center) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	return c.repo.MarkRead(ctx, userID, id)
}

func (c *Center) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return c.repo.MarkAllRead(ctx, userID)
}

func (c *Center) Remove(ctx context.Context, userID, id string) (bool, error) {
	return c.repo.Delete(ctx, userID, id)
}

func (c *Center) Clear(ctx context.Context, userID string) error {
	return c.repo.DeleteAll(ctx, userID)
}
