package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator returns "<prefix>-1", "<prefix>-2", ... so session
// identifiers in tests are predictable.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator. An empty prefix becomes
// "session".
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "session"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next identifier.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
