// internal/client/seq.go
package client

import "sync"

// seqGuard assigns a monotonically increasing sequence number per resource
// key and discards responses that resolve after a newer request for the same
// key has already completed. It models the stale-response rule for rapid
// refetches (e.g. preference tab switching).
type seqGuard struct {
	mu        sync.Mutex
	next      map[string]uint64
	completed map[string]uint64
}

func newSeqGuard() *seqGuard {
	return &seqGuard{
		next:      make(map[string]uint64),
		completed: make(map[string]uint64),
	}
}

// begin registers a new request for key and returns its sequence number.
func (g *seqGuard) begin(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[key]++
	return g.next[key]
}

// complete records that the request with the given sequence finished.
// It returns false when a newer request for the same key already completed,
// in which case the caller must discard this response.
func (g *seqGuard) complete(key string, seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.completed[key] > seq {
		return false
	}
	g.completed[key] = seq
	return true
}
