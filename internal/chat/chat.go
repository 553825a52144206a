// Package chat owns chat threads between connected matches and their messages.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/repository"
)

// MaxMessageLength bounds a single chat message.
const MaxMessageLength = 2000

type sendInput struct {
	ThreadID string `validate:"required,max=64"`
	SenderID string `validate:"required,max=64"`
	Content  string `validate:"required,max=2000"`
}

// ThreadSummary is a thread as seen by one participant.
type ThreadSummary struct {
	Thread      db.ChatThread
	OtherUserID string
	LastMessage *db.ChatMessage
	Unread      int64
}

type Service struct {
	repo     *repository.ChatRepository
	store    *cache.RedisCache
	validate *validator.Validate
	log      *slog.Logger
}

func NewService(repo *repository.ChatRepository, store *cache.RedisCache, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		validate: validator.New(),
		log:      log.With("module", "chat"),
	}
}

// InitializeChat creates or reuses the thread between userID and otherUserID.
// created is true only for the call that made the thread.
func (s *Service) InitializeChat(ctx context.Context, userID, otherUserID string) (db.ChatThread, bool, error) {
	userID, err := domain.CheckID("user_id", userID)
	if err != nil {
		return db.ChatThread{}, false, err
	}
	otherUserID, err = domain.CheckID("other_user_id", otherUserID)
	if err != nil {
		return db.ChatThread{}, false, err
	}
	if userID == otherUserID {
		return db.ChatThread{}, false, fmt.Errorf("%w: cannot chat with yourself", domain.ErrValidation)
	}

	thread, created, err := s.repo.EnsureThread(ctx, userID, otherUserID)
	if err != nil {
		return db.ChatThread{}, false, err
	}
	if created {
		s.log.Info("chat initialized", "thread", thread.ID, "user", userID, "other", otherUserID)
	}
	return thread, created, nil
}

// SendMessage appends a message from senderID to the thread.
//
// Behavior:
//   - content is trimmed, must be 1..MaxMessageLength characters.
//   - sender must be a participant, otherwise ErrValidation.
//   - rejected with ErrBlocked when either side blocked the other.
func (s *Service) SendMessage(ctx context.Context, threadID, senderID, content string) (db.ChatMessage, error) {
	in := sendInput{
		ThreadID: strings.TrimSpace(threadID),
		SenderID: strings.TrimSpace(senderID),
		Content:  strings.TrimSpace(content),
	}
	if err := s.validate.Struct(in); err != nil {
		return db.ChatMessage{}, fmt.Errorf("%w: %s", domain.ErrValidation, describe(err))
	}

	thread, err := s.thread(ctx, in.ThreadID)
	if err != nil {
		return db.ChatMessage{}, err
	}
	if !thread.Has(in.SenderID) {
		return db.ChatMessage{}, fmt.Errorf("%w: sender is not part of this chat", domain.ErrValidation)
	}
	receiverID := thread.Other(in.SenderID)

	blocked, err := s.blockedEitherWay(ctx, in.SenderID, receiverID)
	if err != nil {
		return db.ChatMessage{}, err
	}
	if blocked {
		return db.ChatMessage{}, fmt.Errorf("%w: messages between these users are blocked", domain.ErrBlocked)
	}

	msg := db.ChatMessage{
		ID:         uuid.NewString(),
		ThreadID:   thread.ID,
		SenderID:   in.SenderID,
		ReceiverID: receiverID,
		Content:    in.Content,
	}
	if err := s.repo.AppendMessage(ctx, &msg); err != nil {
		s.log.Error("append message failed", "thread", thread.ID, "err", err)
		return db.ChatMessage{}, err
	}
	return msg, nil
}

// ListThreads returns the user's threads with the newest activity first.
func (s *Service) ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error) {
	threads, err := s.repo.ListThreads(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		last, err := s.repo.LastMessage(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		unread, err := s.repo.CountUnread(ctx, t.ID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, ThreadSummary{
			Thread:      t,
			OtherUserID: t.Other(userID),
			LastMessage: last,
			Unread:      unread,
		})
	}
	return out, nil
}

// ListMessages pages through a thread, newest first. Only participants may read.
func (s *Service) ListMessages(ctx context.Context, threadID, readerID string, token *string, limit int) ([]db.ChatMessage, *string, error) {
	thread, err := s.thread(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}
	if !thread.Has(readerID) {
		return nil, nil, fmt.Errorf("%w: reader is not part of this chat", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListMessages(ctx, thread.ID, token, limit)
}

// MarkRead flags every message addressed to readerID as read.
func (s *Service) MarkRead(ctx context.Context, threadID, readerID string) (int64, error) {
	return s.repo.MarkRead(ctx, threadID, readerID)
}

func (s *Service) UnreadCount(ctx context.Context, threadID, readerID string) (int64, error) {
	return s.repo.CountUnread(ctx, threadID, readerID)
}

func (s *Service) thread(ctx context.Context, threadID string) (db.ChatThread, error) {
	t, err := s.repo.GetThread(ctx, threadID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.ChatThread{}, fmt.Errorf("%w: chat %s", domain.ErrNotFound, threadID)
	}
	return t, err
}

func (s *Service) blockedEitherWay(ctx context.Context, a, b string) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	if ok, err := s.store.InIDSet(ctx, a, cache.KeyBlockedUsers, b); err != nil || ok {
		return ok, err
	}
	return s.store.InIDSet(ctx, b, cache.KeyBlockedUsers, a)
}

// describe turns validator errors into a short field list.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, strings.ToLower(fe.Field())+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, strings.ToLower(fe.Field())+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}
