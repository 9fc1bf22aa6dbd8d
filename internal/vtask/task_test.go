package vtask

import (
	"context"
	"testing"
	"time"

	"github.com/nickheyer/launcherd/internal/events"
)

func TestPercentageWeightedAverage(t *testing.T) {
	reg := NewRegistry(events.NewBus(), time.Hour)
	defer reg.Stop()

	task := reg.New(context.Background(), "test")
	a := task.Subtask("a", 1)
	b := task.Subtask("b", 3)

	a.Update(Opaque(true)) // fraction 1
	b.Update(Item{Current: 1, Total: 2}) // fraction 0.5

	got := task.Percentage()
	want := (1*1.0 + 3*0.5) / 4.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Percentage() = %v, want %v", got, want)
	}
}

func TestDownloadedBytesSumsDownloadSubtasksOnly(t *testing.T) {
	reg := NewRegistry(events.NewBus(), time.Hour)
	defer reg.Stop()

	task := reg.New(context.Background(), "test")
	d1 := task.Subtask("d1", 1)
	d2 := task.Subtask("d2", 1)
	item := task.Subtask("item", 1)

	d1.Update(Download{Downloaded: 100, Total: 200})
	d2.Update(Download{Downloaded: 50, Total: 200})
	item.Update(Item{Current: 5, Total: 10})

	if got := task.DownloadedBytes(); got != 150 {
		t.Errorf("DownloadedBytes() = %d, want 150", got)
	}
}

func TestCancelMarksCancelledAndCancelsContext(t *testing.T) {
	reg := NewRegistry(events.NewBus(), time.Hour)
	defer reg.Stop()

	task := reg.New(context.Background(), "test")
	task.Cancel()

	if !task.Cancelled() {
		t.Errorf("Cancelled() = false after Cancel()")
	}
	select {
	case <-task.Context().Done():
	default:
		t.Errorf("task context not cancelled after Cancel()")
	}
}

func TestFinishRemovesFromRegistry(t *testing.T) {
	reg := NewRegistry(events.NewBus(), time.Hour)
	defer reg.Stop()

	task := reg.New(context.Background(), "test")
	id := task.ID
	task.Finish(false)

	if _, ok := reg.Get(id); ok {
		t.Errorf("task %d still present in registry after Finish", id)
	}
}
