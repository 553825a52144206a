// Package session runs a user's candidate deck: loading, like/pass decisions,
// mutual-match handling and match acceptance.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/events"
	"github.com/oggyb/devmatch/internal/ledger"
	"github.com/oggyb/devmatch/internal/logger"
	"github.com/oggyb/devmatch/internal/metrics"
	"github.com/oggyb/devmatch/internal/notify"
	"github.com/oggyb/devmatch/internal/registry"
)

type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateDeciding  State = "deciding"
	StateExhausted State = "exhausted"
)

const (
	DefaultLowWaterMark  = 5
	DefaultMatchDuration = 5 * time.Second
	matchesLink          = "/home/matches"
)

// CandidateSource is the read-only developer catalog.
type CandidateSource interface {
	ListExcept(ctx context.Context, exclude []string) ([]db.Profile, error)
	Get(ctx context.Context, id string) (db.Profile, error)
}

// ChatInitializer creates or reuses the chat thread of a connected pair.
type ChatInitializer interface {
	InitializeChat(ctx context.Context, userID, otherUserID string) (db.ChatThread, bool, error)
}

// ActivityLogger records activity; it never fails the caller.
type ActivityLogger interface {
	Record(ctx context.Context, userID string, action activity.Action, md activity.Metadata)
}

// Notifier persists notifications and queues their toasts.
type Notifier interface {
	Notify(ctx context.Context, userID string, note notify.Note) (db.Notification, error)
	NotifyUrgent(ctx context.Context, userID string, note notify.Note) (db.Notification, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Ledger     *ledger.Ledger
	Registry   *registry.Registry
	Candidates CandidateSource
	Chat       ChatInitializer
	Activity   ActivityLogger
	Notifier   Notifier
	Store      *cache.RedisCache
	Events     events.Publisher
	Log        *slog.Logger

	// LowWaterMark triggers a refill when the deck gets shorter than it.
	LowWaterMark int
	// MatchToastDuration is the display time of "New Match" and "Interest Sent".
	MatchToastDuration time.Duration
	// Shuffle permutes freshly loaded candidates; defaults to a uniform shuffle.
	Shuffle func([]db.Profile)
}

func (d *Deps) defaults() {
	if d.LowWaterMark <= 0 {
		d.LowWaterMark = DefaultLowWaterMark
	}
	if d.MatchToastDuration <= 0 {
		d.MatchToastDuration = DefaultMatchDuration
	}
	if d.Shuffle == nil {
		d.Shuffle = func(p []db.Profile) {
			rand.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
		}
	}
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Log == nil {
		d.Log = logger.L()
	}
}

// Outcome is the result of one like/pass.
type Outcome struct {
	// Applied is false when the id was not the current candidate (no-op).
	Applied bool
	Swipe   *db.Swipe
	Match   *db.Match
	Mutual  bool
}

// Stats summarizes the user's swiping.
type Stats struct {
	LikesSent     int64
	LikesReceived int64
	TotalMatches  int64
}

// Session is one user's deck. Decisions are serialized, so the ledger sees
// swipes in call order.
type Session struct {
	userID string
	deps   Deps
	log    *slog.Logger

	decideMu sync.Mutex
	loads    singleflight.Group

	mu      sync.Mutex
	deck    []db.Profile
	state   State
	lastErr string
}

func New(userID string, deps Deps) (*Session, error) {
	userID, err := domain.CheckID("user_id", userID)
	if err != nil {
		return nil, err
	}
	deps.defaults()
	return &Session{
		userID: userID,
		deps:   deps,
		log:    deps.Log.With("module", "session", "user", userID),
		state:  StateIdle,
	}, nil
}

func (s *Session) UserID() string { return s.userID }

// Current returns the candidate on top of the deck.
func (s *Session) Current() (db.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.deck) == 0 {
		return db.Profile{}, false
	}
	return s.deck[0], true
}

// Deck returns a copy of the remaining candidates, top first.
func (s *Session) Deck() []db.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.Profile, len(s.deck))
	copy(out, s.deck)
	return out
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the message of the most recent failed action, "" if none.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LoadDeck tops up the deck and returns the candidates it appended.
//
// Excluded: the user, anyone the user swiped on, connected matches, pending
// matches the user started, blocked users and anyone already in the deck.
// Concurrent calls share one load.
func (s *Session) LoadDeck(ctx context.Context) ([]db.Profile, error) {
	v, err, _ := s.loads.Do("deck", func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		metrics.DeckRefillsTotal.WithLabelValues("error").Inc()
		return nil, s.fail(ctx, "load", err)
	}
	added := v.([]db.Profile)
	metrics.DeckRefillsTotal.WithLabelValues("ok").Inc()
	return added, nil
}

func (s *Session) load(ctx context.Context) ([]db.Profile, error) {
	s.mu.Lock()
	prev := s.state
	if len(s.deck) == 0 {
		s.state = StateLoading
	}
	exclude := map[string]struct{}{s.userID: {}}
	for _, p := range s.deck {
		exclude[p.ID] = struct{}{}
	}
	s.mu.Unlock()

	restore := func() {
		s.mu.Lock()
		if s.state == StateLoading {
			s.state = prev
		}
		s.mu.Unlock()
	}

	swiped, err := s.deps.Ledger.SwipedTargets(ctx, s.userID)
	if err != nil {
		restore()
		return nil, err
	}
	for id := range swiped {
		exclude[id] = struct{}{}
	}

	matches, err := s.deps.Registry.MatchesFor(ctx, s.userID)
	if err != nil {
		restore()
		return nil, err
	}
	for _, m := range matches {
		// pending interest from the other side stays swipeable until rejected
		if m.IsConnected || m.UserAID == s.userID || m.RejectedAt != nil {
			exclude[m.Other(s.userID)] = struct{}{}
		}
	}

	blocked, err := s.deps.Store.LoadIDSet(ctx, s.userID, cache.KeyBlockedUsers)
	if err != nil {
		restore()
		return nil, err
	}
	for _, id := range blocked {
		exclude[id] = struct{}{}
	}

	ids := make([]string, 0, len(exclude))
	for id := range exclude {
		ids = append(ids, id)
	}
	candidates, err := s.deps.Candidates.ListExcept(ctx, ids)
	if err != nil {
		restore()
		return nil, err
	}
	s.deps.Shuffle(candidates)

	s.mu.Lock()
	defer s.mu.Unlock()
	inDeck := make(map[string]struct{}, len(s.deck))
	for _, p := range s.deck {
		inDeck[p.ID] = struct{}{}
	}
	added := make([]db.Profile, 0, len(candidates))
	for _, p := range candidates {
		if _, dup := inDeck[p.ID]; dup {
			continue
		}
		s.deck = append(s.deck, p)
		added = append(added, p)
	}
	if s.state != StateDeciding {
		s.state = s.restingStateLocked()
	}
	s.log.Debug("deck loaded", "added", len(added), "size", len(s.deck))
	return added, nil
}

// Like records interest in the current candidate.
//
// Behavior:
//   - candidateID must be the top of the deck, anything else is a no-op.
//   - Mutual like → connected match, chat initialized, "New Match" toast
//     jumps the notification queue.
//   - One-sided → pending match and an "Interest Sent" toast.
//   - On error the deck is left as it was and an error toast is queued.
func (s *Session) Like(ctx context.Context, candidateID string) (Outcome, error) {
	return s.decide(ctx, candidateID, true)
}

// Pass records a pass on the current candidate.
func (s *Session) Pass(ctx context.Context, candidateID string) (Outcome, error) {
	return s.decide(ctx, candidateID, false)
}

func (s *Session) decide(ctx context.Context, candidateID string, liked bool) (Outcome, error) {
	op := "pass"
	if liked {
		op = "like"
	}
	candidateID, err := domain.CheckID("candidate_id", candidateID)
	if err != nil {
		return Outcome{}, s.fail(ctx, op, err)
	}

	s.decideMu.Lock()
	defer s.decideMu.Unlock()

	cand, prev, ok := s.beginDecision(candidateID)
	if !ok {
		s.log.Debug("decision ignored, not the current candidate", "op", op, "candidate", candidateID)
		return Outcome{}, nil
	}

	out, err := s.record(ctx, cand, liked)
	if err != nil {
		s.mu.Lock()
		s.state = prev
		s.mu.Unlock()
		return out, s.fail(ctx, op, err)
	}

	s.advance(cand.ID)
	s.mirrorSwiped(ctx)

	action := activity.ActionDeveloperPassed
	if liked {
		action = activity.ActionDeveloperLiked
	}
	s.deps.Activity.Record(ctx, s.userID, action, activity.Metadata{UserID: cand.ID, UserName: cand.Name})

	if s.size() < s.deps.LowWaterMark {
		// failures are already reported by LoadDeck
		_, _ = s.LoadDeck(ctx)
	}
	return out, nil
}

// beginDecision checks that id is on top and marks the session Deciding.
func (s *Session) beginDecision(id string) (db.Profile, State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.deck) == 0 || s.deck[0].ID != id {
		return db.Profile{}, s.state, false
	}
	prev := s.state
	s.state = StateDeciding
	return s.deck[0], prev, true
}

func (s *Session) record(ctx context.Context, cand db.Profile, liked bool) (Outcome, error) {
	swipe, err := s.deps.Ledger.RecordSwipe(ctx, s.userID, cand.ID, liked)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Applied: true, Swipe: &swipe}
	if !liked {
		return out, nil
	}

	mutual, err := s.deps.Ledger.IsMutualLike(ctx, s.userID, cand.ID)
	if err != nil {
		return out, err
	}

	match, created, err := s.deps.Registry.AddMatch(ctx, s.userID, cand.ID, mutual)
	if err != nil {
		return out, err
	}
	out.Match, out.Mutual = &match, mutual
	if created {
		s.publish(ctx, events.MatchCreated, match)
	}

	if !mutual {
		s.notify(ctx, false, notify.Note{
			Title:    "Interest Sent",
			Message:  "You showed interest in connecting. We'll notify you if they connect back!",
			Kind:     notify.KindInfo,
			Duration: s.deps.MatchToastDuration,
			Payload:  notify.Payload{Link: matchesLink, SourceUserID: cand.ID, MatchID: match.ID},
		})
		return out, nil
	}

	if match.IsConnected {
		if _, _, err := s.deps.Chat.InitializeChat(ctx, s.userID, cand.ID); err != nil {
			return out, err
		}
	}
	s.publish(ctx, events.MatchConnected, match)
	s.deps.Activity.Record(ctx, s.userID, activity.ActionMatchCreated, activity.Metadata{
		UserID: cand.ID, UserName: cand.Name, MatchID: match.ID,
	})
	s.notify(ctx, true, notify.Note{
		Title:    "🎉 New Match!",
		Message:  fmt.Sprintf("You and %s have matched! Check your matches section to start a conversation.", displayName(cand)),
		Kind:     notify.KindSuccess,
		Duration: s.deps.MatchToastDuration,
		Payload:  notify.Payload{Link: matchesLink, SourceUserID: cand.ID, MatchID: match.ID},
	})
	s.log.Info("mutual match", "match", match.ID, "candidate", cand.ID)
	return out, nil
}

// AcceptMatch connects a pending match the user belongs to and opens its chat.
// Unknown ids and matches of other users are no-ops.
func (s *Session) AcceptMatch(ctx context.Context, matchID string) (*db.Match, error) {
	matchID, err := domain.CheckID("match_id", matchID)
	if err != nil {
		return nil, s.fail(ctx, "accept", err)
	}

	s.decideMu.Lock()
	defer s.decideMu.Unlock()

	m, err := s.deps.Registry.Get(ctx, matchID)
	if err != nil {
		return nil, s.fail(ctx, "accept", err)
	}
	if m == nil || (m.UserAID != s.userID && m.UserBID != s.userID) {
		s.log.Debug("accept ignored, unknown match", "match", matchID)
		return nil, nil
	}

	updated, changed, err := s.deps.Registry.SetConnected(ctx, matchID)
	if err != nil {
		return nil, s.fail(ctx, "accept", err)
	}
	if updated == nil {
		return nil, nil
	}

	other := updated.Other(s.userID)
	if updated.IsConnected {
		if _, _, err := s.deps.Chat.InitializeChat(ctx, s.userID, other); err != nil {
			return updated, s.fail(ctx, "accept", err)
		}
	}
	if !changed {
		return updated, nil
	}

	name := s.nameOf(ctx, other)
	s.deps.Activity.Record(ctx, s.userID, activity.ActionMatchAccepted, activity.Metadata{
		UserID: other, UserName: name, MatchID: updated.ID,
	})
	s.publish(ctx, events.MatchConnected, *updated)
	s.notify(ctx, false, notify.Note{
		Title:   "Match Accepted",
		Message: fmt.Sprintf("You are now connected with %s. Say hello!", name),
		Kind:    notify.KindSuccess,
		Payload: notify.Payload{Link: matchesLink, SourceUserID: other, MatchID: updated.ID},
	})
	return updated, nil
}

// RejectMatch turns down a pending match the user belongs to. Connected
// matches, unknown ids and matches of other users are left alone.
func (s *Session) RejectMatch(ctx context.Context, matchID string) (*db.Match, error) {
	matchID, err := domain.CheckID("match_id", matchID)
	if err != nil {
		return nil, s.fail(ctx, "reject", err)
	}

	s.decideMu.Lock()
	defer s.decideMu.Unlock()

	m, err := s.deps.Registry.Get(ctx, matchID)
	if err != nil {
		return nil, s.fail(ctx, "reject", err)
	}
	if m == nil || (m.UserAID != s.userID && m.UserBID != s.userID) {
		s.log.Debug("reject ignored, unknown match", "match", matchID)
		return nil, nil
	}

	updated, changed, err := s.deps.Registry.Reject(ctx, matchID)
	if err != nil {
		return nil, s.fail(ctx, "reject", err)
	}
	if updated == nil || !changed {
		return updated, nil
	}

	other := updated.Other(s.userID)
	s.deps.Activity.Record(ctx, s.userID, activity.ActionMatchRejected, activity.Metadata{
		UserID: other, UserName: s.nameOf(ctx, other), MatchID: updated.ID,
	})
	s.dropFromDeck(other)
	return updated, nil
}

// dropFromDeck removes id from the deck. Callers hold decideMu, so no
// decision is in flight.
func (s *Session) dropFromDeck(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.deck {
		if p.ID == id {
			s.deck = append(s.deck[:i:i], s.deck[i+1:]...)
			if s.state == StateReady || s.state == StateExhausted {
				s.state = s.restingStateLocked()
			}
			return
		}
	}
}

// Matches returns every match of the user, newest first.
func (s *Session) Matches(ctx context.Context) ([]db.Match, error) {
	return s.deps.Registry.MatchesFor(ctx, s.userID)
}

func (s *Session) Stats(ctx context.Context) (Stats, error) {
	sent, err := s.deps.Ledger.CountLikesSent(ctx, s.userID)
	if err != nil {
		return Stats{}, err
	}
	received, err := s.deps.Ledger.CountLikesReceived(ctx, s.userID)
	if err != nil {
		return Stats{}, err
	}
	total, err := s.deps.Registry.CountConnected(ctx, s.userID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{LikesSent: sent, LikesReceived: received, TotalMatches: total}, nil
}

func (s *Session) advance(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.deck) > 0 && s.deck[0].ID == id {
		s.deck[0] = db.Profile{}
		s.deck = s.deck[1:]
	}
	s.state = s.restingStateLocked()
	s.lastErr = ""
}

func (s *Session) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deck)
}

func (s *Session) restingStateLocked() State {
	if len(s.deck) == 0 {
		return StateExhausted
	}
	return StateReady
}

var failures = map[string][2]string{
	"like":   {"Like Failed", "Failed to like developer"},
	"pass":   {"Pass Failed", "Failed to pass developer"},
	"load":   {"Loading Failed", "Failed to fetch potential matches"},
	"accept": {"Accept Failed", "Failed to update match status"},
	"reject": {"Reject Failed", "Failed to update match status"},
}

// fail stores the session error, queues an error toast and returns err.
func (s *Session) fail(ctx context.Context, op string, err error) error {
	f := failures[op]
	s.mu.Lock()
	s.lastErr = f[1]
	s.mu.Unlock()

	s.log.Error("session action failed", "op", op, "err", err)
	s.notify(ctx, false, notify.Note{
		Title:   f[0],
		Message: f[1] + ". Please try again.",
		Kind:    notify.KindError,
	})
	return err
}

func (s *Session) notify(ctx context.Context, urgent bool, note notify.Note) {
	var err error
	if urgent {
		_, err = s.deps.Notifier.NotifyUrgent(ctx, s.userID, note)
	} else {
		_, err = s.deps.Notifier.Notify(ctx, s.userID, note)
	}
	if err != nil {
		s.log.Warn("notification not delivered", "title", note.Title, "err", err)
	}
}

func (s *Session) publish(ctx context.Context, key string, m db.Match) {
	err := s.deps.Events.Publish(ctx, key, events.Event{
		UserID:     s.userID,
		OtherID:    m.Other(s.userID),
		ResourceID: m.ID,
	})
	if err != nil {
		s.log.Warn("match event not published", "routing_key", key, "err", err)
	}
}

// mirrorSwiped copies the swiped ids to the swipedDevelopers key.
func (s *Session) mirrorSwiped(ctx context.Context) {
	ids, err := s.deps.Ledger.SwipedList(ctx, s.userID)
	if err == nil {
		err = s.deps.Store.SaveSwipedDevelopers(ctx, s.userID, ids)
	}
	if err != nil {
		s.log.Warn("swiped developers not mirrored", "err", err)
	}
}

func (s *Session) nameOf(ctx context.Context, id string) string {
	p, err := s.deps.Candidates.Get(ctx, id)
	if err != nil {
		return "a developer"
	}
	return displayName(p)
}

func displayName(p db.Profile) string {
	if p.Name == "" {
		return "a developer"
	}
	return p.Name
}
