package testutil

import (
	"fmt"
	"sync"
)

// FixedPassIDs hands out pass IDs in sequence, so tests and golden output
// see the same IDs on every run.
//
// Once the listed IDs run out it continues with "test-pass-N". Safe for
// concurrent use.
type FixedPassIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

// NewFixedPassIDs returns a source yielding ids, then generated ones.
func NewFixedPassIDs(ids ...string) *FixedPassIDs {
	return &FixedPassIDs{ids: ids}
}

// NewPassID implements generator.IDSource.
func (f *FixedPassIDs) NewPassID() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.n++
	if f.n <= len(f.ids) {
		return f.ids[f.n-1]
	}
	return fmt.Sprintf("test-pass-%d", f.n)
}

// Issued returns how many IDs have been handed out.
func (f *FixedPassIDs) Issued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}
