package resolve

import (
	"context"
	"testing"
)

func TestRunGuardSupersedes(t *testing.T) {
	var guard RunGuard

	idA, ctxA := guard.Begin(context.Background())
	if !guard.IsCurrent(idA) {
		t.Fatal("first run should be current")
	}

	idB, ctxB := guard.Begin(context.Background())
	if guard.IsCurrent(idA) {
		t.Error("superseded run must no longer be current")
	}
	if !guard.IsCurrent(idB) {
		t.Error("new run should be current")
	}

	select {
	case <-ctxA.Done():
	default:
		t.Error("starting a new run must cancel the previous context")
	}
	if ctxB.Err() != nil {
		t.Error("new run's context must stay live")
	}
}

func TestRunGuardCancelCurrent(t *testing.T) {
	var guard RunGuard

	id, ctx := guard.Begin(context.Background())
	guard.CancelCurrent()

	if ctx.Err() == nil {
		t.Error("CancelCurrent should cancel the active context")
	}
	// The run id stays current; cancellation aborts work, it does not
	// start a successor.
	if !guard.IsCurrent(id) {
		t.Error("cancelled run should remain the latest run")
	}
}
