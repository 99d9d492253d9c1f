package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrQueueClosed is returned when enqueueing after Stop or Drain.
var ErrQueueClosed = errors.New("event queue closed")

const laneCapacity = 100

// Task is one unit of room work, such as greeting a participant.
type Task struct {
	Room string
	Name string
	Run  func(ctx context.Context) error
}

type lane struct {
	ch   chan Task
	done chan struct{}
}

// EventQueue runs tasks in FIFO order per room. A weighted semaphore caps
// how many rooms make progress at once.
type EventQueue struct {
	lanes     map[string]*lane
	semaphore *semaphore.Weighted
	active    atomic.Int64
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewEventQueue creates a queue allowing maxConcurrent tasks at once.
func NewEventQueue(maxConcurrent int64, logger *slog.Logger) *EventQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &EventQueue{
		lanes:     make(map[string]*lane),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		logger:    logger.With("component", "queue"),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *EventQueue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop closes every lane, waits for queued tasks to finish, then cancels the
// queue context.
func (q *EventQueue) Stop() {
	q.mu.Lock()
	q.closed = true
	for room, l := range q.lanes {
		close(l.ch)
		delete(q.lanes, room)
	}
	q.mu.Unlock()

	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
}

// Enqueue adds a task to its room's lane, creating the lane on first use.
func (q *EventQueue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.ctx == nil {
		return ErrQueueClosed
	}

	l, exists := q.lanes[task.Room]
	if !exists {
		l = &lane{ch: make(chan Task, laneCapacity), done: make(chan struct{})}
		q.lanes[task.Room] = l
		q.wg.Add(1)
		go q.processLane(task.Room, l)
	}

	select {
	case l.ch <- task:
		return nil
	default:
		return fmt.Errorf("queue full for room %s", task.Room)
	}
}

// Drain closes the room's lane and blocks until every task already queued
// for it has run. Later Enqueue calls for the room open a fresh lane.
func (q *EventQueue) Drain(room string) {
	q.mu.Lock()
	l, ok := q.lanes[room]
	if ok {
		delete(q.lanes, room)
		close(l.ch)
	}
	q.mu.Unlock()

	if ok {
		<-l.done
	}
}

// processLane drains a single room lane, acquiring a semaphore slot before
// each task so ordering within a room is strict.
func (q *EventQueue) processLane(room string, l *lane) {
	defer q.wg.Done()
	defer close(l.done)

	for task := range l.ch {
		if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
			q.logger.Warn("dropping task, queue stopped", "room", room, "task", task.Name)
			continue
		}

		q.active.Add(1)
		if err := task.Run(q.ctx); err != nil {
			q.logger.Error("task failed", "room", room, "task", task.Name, "err", err)
		}
		q.active.Add(-1)
		q.semaphore.Release(1)
	}
}

// WaitIdle blocks until no tasks are running, or the timeout expires.
// Returns true if idle.
func (q *EventQueue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}
