package session

import (
	"github.com/roach88/litebatch/internal/driver"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// strategy selects how a result set is materialised.
type strategy int

const (
	strategyMany strategy = iota + 1
	strategySingle
	strategyScalar
)

func (s strategy) String() string {
	switch s {
	case strategyMany:
		return "many"
	case strategySingle:
		return "single"
	case strategyScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// materializer reads one result set from the cursor's current position and
// returns the value the entry's future resolves to.
type materializer func(cur driver.Cursor) (any, error)

// entry is one deferred query. It is created by an Include call and
// consumed exactly once, when its result set is read.
type entry struct {
	query    sqlquery.Query
	strategy strategy
	slot     int
	read     materializer
}

// pendingQueue is the FIFO of deferred queries of one session.
//
// Not safe for concurrent use; the owning session is single-goroutine.
type pendingQueue struct {
	entries []*entry
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{entries: make([]*entry, 0, 8)}
}

// push adds an entry to the back of the queue.
func (q *pendingQueue) push(e *entry) {
	q.entries = append(q.entries, e)
}

// front returns up to n entries from the front without removing them.
func (q *pendingQueue) front(n int) []*entry {
	if n > len(q.entries) {
		n = len(q.entries)
	}
	return q.entries[:n]
}

// pop removes the front entry.
func (q *pendingQueue) pop() {
	if len(q.entries) == 0 {
		return
	}

	// Nil out the slot so the backing array does not retain the entry.
	q.entries[0] = nil

	if len(q.entries) == 1 {
		q.entries = q.entries[:0]
	} else {
		q.entries = q.entries[1:]
	}
}

// clear drops every entry and returns them in order.
func (q *pendingQueue) clear() []*entry {
	out := q.entries
	q.entries = make([]*entry, 0, 8)
	return out
}

// size returns the number of pending entries.
func (q *pendingQueue) size() int {
	return len(q.entries)
}
