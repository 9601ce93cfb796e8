package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shahank42/hyper-typer/models"
	"github.com/shahank42/hyper-typer/persistence"
)

func insertTask(t *testing.T, store persistence.Store, task, payload string, runAt time.Time) string {
	t.Helper()
	id := uuid.New().String()
	err := store.Transaction(context.Background(), func(tx persistence.Tx) error {
		return tx.InsertTask(&models.ScheduledTask{
			ID:        id,
			Task:      task,
			Payload:   payload,
			RunAt:     runAt,
			CreatedAt: time.Now(),
		})
	})
	if err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}
	return id
}

func pendingTasks(t *testing.T, store persistence.Store) []models.ScheduledTask {
	t.Helper()
	var tasks []models.ScheduledTask
	err := store.Transaction(context.Background(), func(tx persistence.Tx) error {
		var err error
		tasks, err = tx.DueTasks(time.Now().Add(24 * time.Hour))
		return err
	})
	if err != nil {
		t.Fatalf("DueTasks failed: %v", err)
	}
	return tasks
}

func TestRunDue_DeliversTasksInOrder(t *testing.T) {
	store := persistence.NewMemoryStore()
	sched := New(store)

	var got []string
	sched.Register("record", func(ctx context.Context, payload string) error {
		got = append(got, payload)
		return nil
	})

	base := time.Now()
	insertTask(t, store, "record", "second", base.Add(2*time.Second))
	insertTask(t, store, "record", "first", base.Add(1*time.Second))
	insertTask(t, store, "record", "later", base.Add(time.Hour))

	sched.RunDue(context.Background(), base.Add(10*time.Second))

	if len(got) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d (%v)", len(got), got)
	}
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("Tasks delivered out of runAt order: %v", got)
	}

	// Delivered tasks are gone; the future one remains.
	remaining := pendingTasks(t, store)
	if len(remaining) != 1 || remaining[0].Payload != "later" {
		t.Errorf("Expected only the future task to remain, got %v", remaining)
	}
}

func TestRunDue_NothingDueBeforeRunAt(t *testing.T) {
	store := persistence.NewMemoryStore()
	sched := New(store)

	fired := false
	sched.Register("noop", func(ctx context.Context, payload string) error {
		fired = true
		return nil
	})

	base := time.Now()
	insertTask(t, store, "noop", "x", base.Add(time.Minute))

	sched.RunDue(context.Background(), base)
	if fired {
		t.Error("Task fired before its runAt")
	}
}

func TestRunDue_FailedHandlerRedelivers(t *testing.T) {
	store := persistence.NewMemoryStore()
	sched := New(store)

	calls := 0
	sched.Register("flaky", func(ctx context.Context, payload string) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})

	base := time.Now()
	insertTask(t, store, "flaky", "x", base)

	sched.RunDue(context.Background(), base.Add(time.Second))
	if calls != 1 {
		t.Fatalf("Expected 1 call after first tick, got %d", calls)
	}
	if len(pendingTasks(t, store)) != 1 {
		t.Fatal("Failed task should stay queued for redelivery")
	}

	sched.RunDue(context.Background(), base.Add(2*time.Second))
	if calls != 2 {
		t.Fatalf("Expected redelivery on the next tick, got %d calls", calls)
	}
	if len(pendingTasks(t, store)) != 0 {
		t.Error("Task should be deleted after a successful delivery")
	}
}

func TestRunDue_UnknownTaskIsDropped(t *testing.T) {
	store := persistence.NewMemoryStore()
	sched := New(store)

	base := time.Now()
	insertTask(t, store, "orphan", "x", base)

	sched.RunDue(context.Background(), base.Add(time.Second))

	if len(pendingTasks(t, store)) != 0 {
		t.Error("Task with no handler should be dropped, not retried forever")
	}
}

func TestStartStop(t *testing.T) {
	store := persistence.NewMemoryStore()
	sched := New(store)
	sched.interval = 10 * time.Millisecond

	delivered := make(chan string, 1)
	sched.Register("ping", func(ctx context.Context, payload string) error {
		select {
		case delivered <- payload:
		default:
		}
		return nil
	})

	insertTask(t, store, "ping", "hello", time.Now())

	sched.Start()
	select {
	case payload := <-delivered:
		if payload != "hello" {
			t.Errorf("Unexpected payload %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Task not delivered by the poll loop")
	}
	sched.Stop()
}
