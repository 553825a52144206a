// Package notify owns toast delivery: a per-user display Sequencer that
// shows one toast at a time, and the Center that persists notifications
// and feeds the sequencers.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/devmatch/internal/metrics"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// ParseKind maps unknown values to KindInfo.
func ParseKind(s string) Kind {
	switch k := Kind(s); k {
	case KindSuccess, KindWarning, KindError:
		return k
	}
	return KindInfo
}

// State of a toast in the sequencer.
type State string

const (
	StateQueued    State = "queued"
	StateDisplayed State = "displayed"
	StateExpired   State = "expired"
	// StateDiscarded marks items evicted by ClearQueue/DismissCurrent/Jump.
	StateDiscarded State = "discarded"
)

// Payload carries the optional fields a toast can point at.
type Payload struct {
	Link         string `json:"link,omitempty"`
	SourceUserID string `json:"source_user_id,omitempty"`
	MatchID      string `json:"match_id,omitempty"`
}

// Item is a single toast.
type Item struct {
	ID        string
	Title     string
	Message   string
	Kind      Kind
	CreatedAt time.Time
	// Duration is how long the toast stays displayed; zero means the kind default.
	Duration time.Duration
	Payload  Payload
}

// Event is emitted to subscribers on every state transition.
type Event struct {
	Item  Item
	State State
	At    time.Time
}

// Durations are the per-kind display defaults.
type Durations struct {
	Info    time.Duration
	Success time.Duration
	Warning time.Duration
	Error   time.Duration
}

func DefaultDurations() Durations {
	return Durations{
		Info:    3 * time.Second,
		Success: 4 * time.Second,
		Warning: 5 * time.Second,
		Error:   6 * time.Second,
	}
}

// For returns the default duration of kind k.
func (d Durations) For(k Kind) time.Duration {
	switch k {
	case KindSuccess:
		return d.Success
	case KindWarning:
		return d.Warning
	case KindError:
		return d.Error
	default:
		return d.Info
	}
}

// DefaultGap is the pause between a naturally expired toast and the next one.
const DefaultGap = 100 * time.Millisecond

// subscriberBuffer bounds each subscriber channel; slow readers lose events.
const subscriberBuffer = 32

type slot struct {
	item Item
	done chan struct{}
}

// Sequencer is a FIFO toast queue with a single display slot.
//
// Behavior:
//   - Enqueue appends and wakes the consumer started by Run.
//   - The consumer displays the head for its duration, expires it, waits Gap
//     and moves on. Display order is enqueue order.
//   - Jump is the only way to reorder: it discards everything queued and
//     displayed, then queues the urgent item.
//   - DismissCurrent ends the displayed toast early without touching the queue.
//   - When Run returns, every subscriber channel is closed and later
//     Subscribe calls get a closed channel.
type Sequencer struct {
	durations Durations
	gap       time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	queue   []Item
	current *slot
	subs    map[int]chan Event
	nextSub int
	stopped bool

	wake chan struct{}
	// jump cuts the post-expiry gap short
	jump chan struct{}
}

func NewSequencer(durations Durations, gap time.Duration, log *slog.Logger) *Sequencer {
	return &Sequencer{
		durations: durations,
		gap:       gap,
		log:       log,
		subs:      map[int]chan Event{},
		wake:      make(chan struct{}, 1),
		jump:      make(chan struct{}, 1),
	}
}

// Enqueue fills in id/timestamp/duration defaults and appends the item.
func (s *Sequencer) Enqueue(item Item) Item {
	item = s.normalize(item)
	s.mu.Lock()
	s.queue = append(s.queue, item)
	s.emitLocked(item, StateQueued)
	s.mu.Unlock()

	metrics.ToastQueueDepth.Inc()
	s.signal()
	return item
}

// Jump clears the queue, dismisses the displayed toast and queues item,
// all under one lock so nothing can slip in between.
func (s *Sequencer) Jump(item Item) Item {
	item = s.normalize(item)
	s.mu.Lock()
	s.clearLocked()
	s.dismissLocked()
	s.queue = append(s.queue, item)
	s.emitLocked(item, StateQueued)
	s.mu.Unlock()

	metrics.ToastQueueDepth.Inc()
	s.signal()
	select {
	case s.jump <- struct{}{}:
	default:
	}
	return item
}

// ClearQueue discards every waiting toast. The displayed one stays.
func (s *Sequencer) ClearQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

// DismissCurrent hides the displayed toast, if any.
func (s *Sequencer) DismissCurrent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissLocked()
}

// Current returns the displayed toast.
func (s *Sequencer) Current() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Item{}, false
	}
	return s.current.item, true
}

// Pending returns a copy of the waiting toasts in display order.
func (s *Sequencer) Pending() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.queue))
	copy(out, s.queue)
	return out
}

// Subscribe streams state transitions until cancel is called.
func (s *Sequencer) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	if s.stopped {
		close(ch)
		return ch, func() {}
	}
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Stop closes every subscriber channel. Run calls it on the way out.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Run is the consumer loop. It returns when ctx is done.
func (s *Sequencer) Run(ctx context.Context) error {
	defer s.Stop()
	// a Jump raised before this item was taken is already served
	drain := func() {
		select {
		case <-s.jump:
		default:
		}
	}
	for {
		cur, ok := s.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
				continue
			}
		}

		drain()
		timer := time.NewTimer(cur.item.Duration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-cur.done:
			// dismissed or jumped over, next item shows right away
			timer.Stop()
		case <-timer.C:
			if s.expire(cur) && s.gap > 0 {
				gap := time.NewTimer(s.gap)
				select {
				case <-ctx.Done():
					gap.Stop()
					return ctx.Err()
				case <-gap.C:
				case <-s.jump:
					gap.Stop()
				}
			}
		}
	}
}

func (s *Sequencer) next() (*slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	item := s.queue[0]
	s.queue[0] = Item{}
	s.queue = s.queue[1:]
	metrics.ToastQueueDepth.Dec()

	s.current = &slot{item: item, done: make(chan struct{})}
	s.emitLocked(item, StateDisplayed)
	return s.current, true
}

// expire clears the slot if cur still owns it.
func (s *Sequencer) expire(cur *slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != cur {
		return false
	}
	s.current = nil
	s.emitLocked(cur.item, StateExpired)
	return true
}

func (s *Sequencer) clearLocked() int {
	n := len(s.queue)
	for _, it := range s.queue {
		s.emitLocked(it, StateDiscarded)
	}
	s.queue = nil
	metrics.ToastQueueDepth.Sub(float64(n))
	return n
}

func (s *Sequencer) dismissLocked() bool {
	if s.current == nil {
		return false
	}
	close(s.current.done)
	s.emitLocked(s.current.item, StateDiscarded)
	s.current = nil
	return true
}

func (s *Sequencer) emitLocked(item Item, state State) {
	metrics.ToastsTotal.WithLabelValues(string(item.Kind), string(state)).Inc()
	ev := Event{Item: item, State: state, At: time.Now().UTC()}
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Warn("toast subscriber lagging, event dropped", "subscriber", id, "toast", item.ID)
		}
	}
}

func (s *Sequencer) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sequencer) normalize(item Item) Item {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Kind == "" {
		item.Kind = KindInfo
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Duration <= 0 {
		item.Duration = s.durations.For(item.Kind)
	}
	return item
}
