// scheduler/scheduler.go
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/shahank42/hyper-typer/logger"
	"github.com/shahank42/hyper-typer/models"
	"github.com/shahank42/hyper-typer/persistence"
)

// Handler executes a scheduled task. It runs in a fresh transaction context
// and must be idempotent: delivery is at least once, and the game state may
// have moved on before the task fires.
type Handler func(ctx context.Context, payload string) error

// Scheduler delivers delayed internal mutations. Tasks live in the store
// (inserted by the mutation that schedules them, in the same transaction),
// so a countdown started before a restart still fires after it. A poll loop
// dispatches due tasks to handlers registered by task name; a task row is
// deleted only after its handler returns nil.
type Scheduler struct {
	store    persistence.Store
	interval time.Duration

	mutex    sync.RWMutex
	handlers map[string]Handler

	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a scheduler polling the store every 100ms.
func New(store persistence.Store) *Scheduler {
	return &Scheduler{
		store:    store,
		interval: 100 * time.Millisecond,
		handlers: make(map[string]Handler),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Register binds a handler to a task name. Must be called before Start.
func (s *Scheduler) Register(task string, handler Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.handlers[task] = handler
}

// Start launches the poll loop.
func (s *Scheduler) Start() {
	go s.process()
}

// Stop terminates the poll loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

func (s *Scheduler) process() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunDue(context.Background(), time.Now())
		case <-s.stopChan:
			return
		}
	}
}

// RunDue dispatches every task due at the given instant. Exposed so tests
// can advance time explicitly instead of sleeping through countdowns.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) {
	var due []models.ScheduledTask
	err := s.store.Transaction(ctx, func(tx persistence.Tx) error {
		var err error
		due, err = tx.DueTasks(now)
		return err
	})
	if err != nil {
		logger.Log.Errorw("failed to fetch due tasks", "error", err)
		return
	}

	for _, task := range due {
		s.dispatch(ctx, task)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, task models.ScheduledTask) {
	s.mutex.RLock()
	handler, ok := s.handlers[task.Task]
	s.mutex.RUnlock()

	if !ok {
		// Nothing will ever consume it; drop it rather than loop forever.
		logger.Log.Warnw("dropping task with no handler", "task", task.Task, "id", task.ID)
		s.deleteTask(ctx, task.ID)
		return
	}

	if err := handler(ctx, task.Payload); err != nil {
		// Leave the row in place; the next tick redelivers it.
		logger.Log.Errorw("task handler failed", "task", task.Task, "payload", task.Payload,
			"error", err)
		return
	}

	s.deleteTask(ctx, task.ID)
}

func (s *Scheduler) deleteTask(ctx context.Context, id string) {
	err := s.store.Transaction(ctx, func(tx persistence.Tx) error {
		return tx.DeleteTask(id)
	})
	if err != nil {
		logger.Log.Errorw("failed to delete task", "id", id, "error", err)
	}
}
