package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/utils/pagination"
)

// ChatRepository stores chat threads and their messages.
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(database *gorm.DB) *ChatRepository {
	return &ChatRepository{db: database}
}

// EnsureThread returns the thread for the unordered pair, creating it once.
func (r *ChatRepository) EnsureThread(ctx context.Context, userID, otherID string) (db.ChatThread, bool, error) {
	low, high := domain.OrderedPair(userID, otherID)
	candidate := db.ChatThread{ID: uuid.NewString(), UserLow: low, UserHigh: high}

	var thread db.ChatThread
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_low"}, {Name: "user_high"}},
			DoNothing: true,
		}).Create(&candidate).Error; err != nil {
			return err
		}
		return tx.Where("user_low = ? AND user_high = ?", low, high).First(&thread).Error
	})
	if err != nil {
		return db.ChatThread{}, false, err
	}
	return thread, thread.ID == candidate.ID, nil
}

// GetThread returns a thread or gorm.ErrRecordNotFound.
func (r *ChatRepository) GetThread(ctx context.Context, threadID string) (db.ChatThread, error) {
	var t db.ChatThread
	err := r.db.WithContext(ctx).Where("id = ?", threadID).First(&t).Error
	return t, err
}

// ListThreads returns the user's threads, most recent activity first.
// Threads without messages sort by creation time.
func (r *ChatRepository) ListThreads(ctx context.Context, userID string) ([]db.ChatThread, error) {
	var threads []db.ChatThread
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC, id DESC").
		Find(&threads).Error
	return threads, err
}

// AppendMessage stores the message and bumps the thread's last activity.
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *db.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&db.ChatThread{}).
			Where("id = ?", msg.ThreadID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

// ListMessages pages through a thread newest first.
func (r *ChatRepository) ListMessages(
	ctx context.Context,
	threadID string,
	paginationToken *string,
	limit int,
) ([]db.ChatMessage, *string, error) {
	cursor, err := pagination.Decode(pagination.Deref(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.ID)
	}

	var msgs []db.ChatMessage
	if err := query.Find(&msgs).Error; err != nil {
		return nil, nil, err
	}
	msgs, next := pagination.Page(msgs, limit, func(m db.ChatMessage) pagination.Cursor {
		return pagination.After(m.ID, m.CreatedAt)
	})
	return msgs, next, nil
}

// LastMessage returns the newest message of a thread, nil when empty.
func (r *ChatRepository) LastMessage(ctx context.Context, threadID string) (*db.ChatMessage, error) {
	var msgs []db.ChatMessage
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&msgs).Error
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// MarkRead flags every message addressed to reader in the thread as read.
func (r *ChatRepository) MarkRead(ctx context.Context, threadID, readerID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.ChatMessage{}).
		Where("thread_id = ? AND receiver_id = ? AND is_read = ?", threadID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *ChatRepository) CountUnread(ctx context.Context, threadID, readerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.ChatMessage{}).
		Where("thread_id = ? AND receiver_id = ? AND is_read = ?", threadID, readerID, false).
		Count(&count).Error
	return count, err
}
