package command

import (
	"fmt"
	"sync"

	"github.com/your-org/qc-cell/internal/models"
)

// Trigger arbitrates which batch is active, per §4.13's invariants: a
// generation already processed or in flight is rejected outright, a
// batch arriving while one is active is stashed as the single pending
// slot (a newer pending overwrites an older one), and completing the
// active batch atomically promotes pending if present.
type Trigger struct {
	mu          sync.Mutex
	active      *models.Batch
	pending     *models.Batch
	highestSeen uint64
	seenAny     bool
}

func NewTrigger() *Trigger {
	return &Trigger{}
}

// Offer admits a freshly built batch. activated reports whether the
// batch became active immediately (queue was idle); when false the
// batch was stashed as pending and the caller should not touch the
// dispatch queue yet.
func (t *Trigger) Offer(b models.Batch) (activated bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seenAny && b.Generation <= t.highestSeen {
		return false, fmt.Errorf("batch trigger: generation %d already processed or in flight (highest seen %d)", b.Generation, t.highestSeen)
	}
	t.highestSeen = b.Generation
	t.seenAny = true

	batch := b
	if t.active == nil {
		t.active = &batch
		return true, nil
	}

	t.pending = &batch
	return false, nil
}

// Active returns the currently active batch, if any.
func (t *Trigger) Active() (models.Batch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return models.Batch{}, false
	}
	return *t.active, true
}

// Complete marks the active batch finished and, if a pending batch was
// stashed, promotes it to active atomically. next is the newly active
// batch when promoted is true.
func (t *Trigger) Complete() (next models.Batch, promoted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = nil
	if t.pending == nil {
		return models.Batch{}, false
	}

	t.active = t.pending
	t.pending = nil
	return *t.active, true
}
