// Package session implements deferred query batching and execution.
//
// ARCHITECTURE:
//
// A Session is one unit of work bound to one store connection. Callers
// either run a query immediately or include it for later:
//
//	users := session.IncludeMany[User](s, q1)     // *Future[[]User]
//	total := session.IncludeScalar[int64](s, q2)  // *Future[int64]
//	list, err := users.Value(ctx)                 // drains the queue once
//
// Draining:
// Included queries wait in a FIFO pending queue. The first read of an
// unresolved future drains the whole queue. When the dialect supports
// batched queries, consecutive entries are combined into one command
// (split only to honour the dialect's parameter limit) and the result sets
// are read back in the order the queries were included. Otherwise each
// entry runs as its own command, in order.
//
// Failure:
// A failed drain leaves the entries it already resolved resolved, leaves
// the rest pending and makes the session unusable. Every later operation
// returns a UsageError carrying the original failure.
//
// Thread-safety: a Session and its futures must be used from one goroutine.
// The Factory and the mapping registry it shares are safe for concurrent use.
package session
