package session

import (
	"context"

	"github.com/roach88/litebatch/internal/dberr"
)

// slotState tracks a future through its lifetime.
type slotState int

const (
	slotPending slotState = iota
	slotResolved
	slotDiscarded
)

// slot holds the value of one future. Slots live in the session's arena
// and are addressed by index so the queue and the futures never hold
// pointers to each other.
type slot struct {
	state slotState
	value any
}

// Future is the handle to the result of an included query.
//
// A Future is resolved at most once, by the drain that reads its result set.
// It belongs to the session that created it and must not outlive it.
type Future[T any] struct {
	s   *Session
	idx int
}

// Value returns the result, draining the session's pending queue first when
// the future is unresolved.
//
// Errors:
//   - UsageError: the session was closed with the query still pending, or
//     is unusable after an earlier failure
//   - ExecutionError: the drain failed
//   - ProtocolViolation: the drain completed without resolving this future
func (f *Future[T]) Value(ctx context.Context) (T, error) {
	var zero T

	switch f.s.slots[f.idx].state {
	case slotDiscarded:
		return zero, dberr.Usage("query was discarded when session %s closed", f.s.id)
	case slotPending:
		if err := f.s.Drain(ctx); err != nil {
			return zero, err
		}
		if f.s.slots[f.idx].state != slotResolved {
			err := dberr.Protocol("drain completed without resolving future %d", f.idx)
			f.s.fail(err)
			return zero, err
		}
	}

	v := f.s.slots[f.idx].value
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, dberr.Protocol("future %d holds %T", f.idx, v)
	}
	return typed, nil
}

// Resolved reports whether the value is available without executing
// anything.
func (f *Future[T]) Resolved() bool {
	return f.s.slots[f.idx].state == slotResolved
}

// newSlot appends a pending slot and returns its index.
func (s *Session) newSlot() int {
	s.slots = append(s.slots, slot{})
	return len(s.slots) - 1
}

// resolve stores the value of slot idx. A slot is resolved exactly once.
func (s *Session) resolve(idx int, value any) error {
	sl := &s.slots[idx]
	if sl.state != slotPending {
		return dberr.Protocol("future %d resolved twice", idx)
	}
	sl.state = slotResolved
	sl.value = value
	return nil
}
