package command

import (
	"testing"

	"github.com/your-org/qc-cell/internal/models"
)

func TestTriggerOfferActivatesWhenIdle(t *testing.T) {
	tr := NewTrigger()
	activated, err := tr.Offer(models.Batch{Generation: 1})
	if err != nil {
		t.Fatalf("Offer() error = %v", err)
	}
	if !activated {
		t.Error("activated = false, want true (trigger was idle)")
	}

	active, ok := tr.Active()
	if !ok || active.Generation != 1 {
		t.Errorf("Active() = %v, %v, want generation 1", active, ok)
	}
}

func TestTriggerOfferStashesWhenActive(t *testing.T) {
	tr := NewTrigger()
	tr.Offer(models.Batch{Generation: 1})

	activated, err := tr.Offer(models.Batch{Generation: 2})
	if err != nil {
		t.Fatalf("Offer() error = %v", err)
	}
	if activated {
		t.Error("activated = true, want false (a batch was already active)")
	}

	active, _ := tr.Active()
	if active.Generation != 1 {
		t.Errorf("Active().Generation = %d, want 1 (unchanged by pending offer)", active.Generation)
	}
}

func TestTriggerNewerPendingOverwritesOlder(t *testing.T) {
	tr := NewTrigger()
	tr.Offer(models.Batch{Generation: 1})
	tr.Offer(models.Batch{Generation: 2})
	tr.Offer(models.Batch{Generation: 3})

	next, promoted := tr.Complete()
	if !promoted || next.Generation != 3 {
		t.Errorf("Complete() = %v, %v, want generation 3 (newest pending wins)", next, promoted)
	}
}

func TestTriggerRejectsStaleOrDuplicateGeneration(t *testing.T) {
	tr := NewTrigger()
	tr.Offer(models.Batch{Generation: 5})

	if _, err := tr.Offer(models.Batch{Generation: 5}); err == nil {
		t.Error("Offer() duplicate generation: error = nil, want rejection")
	}
	if _, err := tr.Offer(models.Batch{Generation: 3}); err == nil {
		t.Error("Offer() stale generation: error = nil, want rejection")
	}
}

func TestTriggerCompleteWithNoPendingReturnsIdle(t *testing.T) {
	tr := NewTrigger()
	tr.Offer(models.Batch{Generation: 1})

	next, promoted := tr.Complete()
	if promoted {
		t.Errorf("Complete() promoted = true, want false (no pending batch); next = %v", next)
	}
	if _, ok := tr.Active(); ok {
		t.Error("Active() ok = true, want false after Complete with nothing pending")
	}
}

func TestTriggerCompleteThenOfferNewGenerationActivatesImmediately(t *testing.T) {
	tr := NewTrigger()
	tr.Offer(models.Batch{Generation: 1})
	tr.Complete()

	activated, err := tr.Offer(models.Batch{Generation: 2})
	if err != nil {
		t.Fatalf("Offer() error = %v", err)
	}
	if !activated {
		t.Error("activated = false, want true (trigger idle again after Complete)")
	}
}
