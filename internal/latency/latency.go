// Package latency simulates the network round trip of the mock actions
// (login, privacy changes, report submission).
package latency

import (
	"context"
	"fmt"
	"time"

	"github.com/oggyb/devmatch/internal/domain"
)

// Simulator waits for a fixed delay and may then reject the call.
// The zero value returns immediately and never rejects.
type Simulator struct {
	Delay time.Duration
	// Reject, when set, decides whether the finished call fails.
	Reject func(op string) error
}

// New returns a simulator that never rejects.
func New(d time.Duration) *Simulator {
	return &Simulator{Delay: d}
}

// Wait blocks for the configured delay. It returns ctx.Err() if the context
// ends first, or a domain.ErrUnavailable wrapped error when Reject fails the call.
func (s *Simulator) Wait(ctx context.Context, op string) error {
	if s == nil {
		return nil
	}
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if s.Reject != nil {
		if err := s.Reject(op); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrUnavailable, op, err)
		}
	}
	return nil
}

// Fail is a Reject hook that rejects every call.
func Fail(err error) func(string) error {
	return func(string) error { return err }
}
