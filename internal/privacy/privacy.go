// Package privacy manages the per-user mute and block lists kept under the
// mutedUsers and blockedUsers local storage keys.
package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/latency"
	"github.com/oggyb/devmatch/internal/notify"
)

// Result describes the outcome of a privacy change.
type Result struct {
	Changed bool
	Message string
}

// Notifier is the part of notify.Center privacy needs.
type Notifier interface {
	Notify(ctx context.Context, userID string, note notify.Note) (db.Notification, error)
}

// ActivityRecorder logs activity without failing the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, action activity.Action, md activity.Metadata)
}

type Service struct {
	store    *cache.RedisCache
	notifier Notifier
	activity ActivityRecorder
	net      *latency.Simulator
	log      *slog.Logger

	// guards the read-modify-write of the stored lists
	mu sync.Mutex
}

func NewService(
	store *cache.RedisCache,
	notifier Notifier,
	recorder ActivityRecorder,
	net *latency.Simulator,
	log *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		activity: recorder,
		net:      net,
		log:      log.With("module", "privacy"),
	}
}

type change struct {
	list        string
	add         bool
	action      activity.Action
	op          string
	kind        notify.Kind
	title       string
	message     string
	noop        string
	done        string
	failedTitle string
}

var (
	muteChange = change{
		list: cache.KeyMutedUsers, add: true, action: activity.ActionUserMuted, op: "mute",
		kind: notify.KindInfo, title: "User Muted", message: "You will no longer receive notifications from %s.",
		noop: "%s is already muted", done: "%s has been muted", failedTitle: "Mute Failed",
	}
	unmuteChange = change{
		list: cache.KeyMutedUsers, action: activity.ActionUserUnmuted, op: "unmute",
		kind: notify.KindInfo, title: "User Unmuted", message: "You will now receive notifications from %s.",
		noop: "%s is not muted", done: "%s has been unmuted", failedTitle: "Unmute Failed",
	}
	blockChange = change{
		list: cache.KeyBlockedUsers, add: true, action: activity.ActionUserBlocked, op: "block",
		kind: notify.KindWarning, title: "User Blocked", message: "%s has been blocked and can no longer interact with you.",
		noop: "%s is already blocked", done: "%s has been blocked", failedTitle: "Block Failed",
	}
	unblockChange = change{
		list: cache.KeyBlockedUsers, action: activity.ActionUserUnblocked, op: "unblock",
		kind: notify.KindInfo, title: "User Unblocked", message: "%s has been unblocked and can now interact with you.",
		noop: "%s is not blocked", done: "%s has been unblocked", failedTitle: "Unblock Failed",
	}
)

func (s *Service) Mute(ctx context.Context, ownerID, targetID, targetName string) (Result, error) {
	return s.apply(ctx, muteChange, ownerID, targetID, targetName)
}

func (s *Service) Unmute(ctx context.Context, ownerID, targetID, targetName string) (Result, error) {
	return s.apply(ctx, unmuteChange, ownerID, targetID, targetName)
}

func (s *Service) Block(ctx context.Context, ownerID, targetID, targetName string) (Result, error) {
	return s.apply(ctx, blockChange, ownerID, targetID, targetName)
}

func (s *Service) Unblock(ctx context.Context, ownerID, targetID, targetName string) (Result, error) {
	return s.apply(ctx, unblockChange, ownerID, targetID, targetName)
}

func (s *Service) IsMuted(ctx context.Context, ownerID, targetID string) (bool, error) {
	return s.store.InIDSet(ctx, ownerID, cache.KeyMutedUsers, targetID)
}

func (s *Service) IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error) {
	return s.store.InIDSet(ctx, ownerID, cache.KeyBlockedUsers, targetID)
}

func (s *Service) Muted(ctx context.Context, ownerID string) ([]string, error) {
	return s.store.LoadIDSet(ctx, ownerID, cache.KeyMutedUsers)
}

func (s *Service) Blocked(ctx context.Context, ownerID string) ([]string, error) {
	return s.store.LoadIDSet(ctx, ownerID, cache.KeyBlockedUsers)
}

// apply runs one list change.
//
// Behavior:
//   - Already in the requested state → Result{Changed: false}, no delay.
//   - Otherwise waits the simulated round trip, rewrites the list, logs the
//     activity and notifies the owner.
//   - Any failure after validation queues an error toast for the owner.
func (s *Service) apply(ctx context.Context, c change, ownerID, targetID, targetName string) (Result, error) {
	ownerID, err := domain.CheckID("user_id", ownerID)
	if err != nil {
		return Result{}, err
	}
	targetID, err = domain.CheckID("target_id", targetID)
	if err != nil {
		return Result{}, err
	}
	if ownerID == targetID {
		return Result{}, fmt.Errorf("%w: cannot %s yourself", domain.ErrValidation, c.op)
	}
	if targetName == "" {
		targetName = targetID
	}

	res, err := s.change(ctx, c, ownerID, targetID, targetName)
	if err != nil {
		s.log.Error("privacy change failed", "op", c.op, "user", ownerID, "target", targetID, "err", err)
		if _, nerr := s.notifier.Notify(ctx, ownerID, notify.Note{
			Title:   c.failedTitle,
			Message: fmt.Sprintf("Failed to %s user. Please try again later.", c.op),
			Kind:    notify.KindError,
		}); nerr != nil {
			s.log.Warn("error toast not delivered", "user", ownerID, "err", nerr)
		}
		return Result{}, err
	}
	return res, nil
}

func (s *Service) change(ctx context.Context, c change, ownerID, targetID, targetName string) (Result, error) {
	ids, err := s.store.LoadIDSet(ctx, ownerID, c.list)
	if err != nil {
		return Result{}, err
	}
	if slices.Contains(ids, targetID) == c.add {
		return Result{Message: fmt.Sprintf(c.noop, targetName)}, nil
	}

	if err := s.net.Wait(ctx, c.op); err != nil {
		return Result{}, err
	}

	changed, err := s.rewrite(ctx, c, ownerID, targetID)
	if err != nil {
		return Result{}, err
	}
	if !changed {
		return Result{Message: fmt.Sprintf(c.noop, targetName)}, nil
	}

	s.activity.Record(ctx, ownerID, c.action, activity.Metadata{UserID: targetID, UserName: targetName})
	if _, err := s.notifier.Notify(ctx, ownerID, notify.Note{
		Title:   c.title,
		Message: fmt.Sprintf(c.message, targetName),
		Kind:    c.kind,
	}); err != nil {
		s.log.Warn("privacy toast not delivered", "user", ownerID, "err", err)
	}
	s.log.Info("privacy updated", "op", c.op, "user", ownerID, "target", targetID)
	return Result{Changed: true, Message: fmt.Sprintf(c.done, targetName)}, nil
}

// rewrite re-reads the list after the simulated wait so concurrent changes
// by the same owner all land.
func (s *Service) rewrite(ctx context.Context, c change, ownerID, targetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.store.LoadIDSet(ctx, ownerID, c.list)
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, targetID) == c.add {
		return false, nil
	}
	if c.add {
		ids = append(ids, targetID)
	} else {
		ids = slices.DeleteFunc(ids, func(id string) bool { return id == targetID })
	}
	if err := s.store.SaveIDSet(ctx, ownerID, c.list, ids); err != nil {
		return false, err
	}
	return true, nil
}
