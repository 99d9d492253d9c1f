package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/internal/realtime"
	"github.com/zhouzirui/standup/backend/internal/scheduler"
	"github.com/zhouzirui/standup/backend/internal/service/ai"
	chatsvc "github.com/zhouzirui/standup/backend/internal/service/chat"
	"github.com/zhouzirui/standup/backend/internal/service/meeting"
	"github.com/zhouzirui/standup/backend/internal/service/speech"
)

var (
	ErrNoSession  = errors.New("no meeting running in room")
	ErrJobRunning = errors.New("a stand-up job is already running in room")
)

// Deps are the prewarmed collaborators shared by every job.
type Deps struct {
	Store     participant.Store
	Meeting   *meeting.State
	Chat      *chatsvc.Service
	Script    ai.Script
	Dialogues DialogueFactory
	Synth     speech.Synthesizer // optional
	Connector realtime.Connector
}

// Config controls when jobs run and how long they last.
type Config struct {
	RoomName         string
	Options          Options
	TranscriptDir    string
	Schedule         string
	Duration         time.Duration
	QueueConcurrency int64
	ExitTimeout      time.Duration
	// RetryDelay is the pause before rejoining the room after a job ends
	// without a schedule. Failed joins back off from it up to maxRetryDelay.
	RetryDelay time.Duration
}

// Worker runs stand-up jobs and tracks the active session per room.
type Worker struct {
	deps   Deps
	cfg    Config
	queue  *EventQueue
	logger *slog.Logger

	mu       sync.Mutex
	running  map[string]struct{}
	sessions map[string]*Session
	jobs     sync.WaitGroup
}

// NewWorker 创建会议 worker。
func NewWorker(deps Deps, cfg Config, logger *slog.Logger) *Worker {
	if cfg.ExitTimeout <= 0 {
		cfg.ExitTimeout = defaultExitTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	logger = logger.With("component", "worker")
	return &Worker{
		deps:     deps,
		cfg:      cfg,
		queue:    NewEventQueue(cfg.QueueConcurrency, logger),
		logger:   logger,
		running:  make(map[string]struct{}),
		sessions: make(map[string]*Session),
	}
}

// Run serves the configured room until ctx is cancelled. Without a schedule
// it keeps a job in the room, rejoining whenever one ends; with one it runs a
// job per firing. Job failures are logged and never returned.
func (w *Worker) Run(ctx context.Context) error {
	w.queue.Start(ctx)
	defer w.queue.Stop()

	if w.cfg.Schedule == "" {
		w.serveRoom(ctx)
		return nil
	}

	sched, err := scheduler.New(w.cfg.Schedule, func() {
		w.jobs.Add(1)
		defer w.jobs.Done()
		if err := w.runJob(ctx, w.cfg.RoomName); err != nil {
			w.logger.Error("scheduled stand-up failed", "room", w.cfg.RoomName, "err", err)
		}
	}, w.logger)
	if err != nil {
		return err
	}
	sched.Start()

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), w.cfg.ExitTimeout)
	defer cancel()
	sched.Stop(stopCtx)
	w.jobs.Wait()
	return nil
}

// serveRoom runs jobs back to back. A failed job backs off exponentially; a
// job that ends because the room closed is followed after RetryDelay.
func (w *Worker) serveRoom(ctx context.Context) {
	room := w.cfg.RoomName
	backoff := w.cfg.RetryDelay
	ceiling := max(maxRetryDelay, w.cfg.RetryDelay)

	for {
		err := w.runJob(ctx, room)
		if ctx.Err() != nil {
			return
		}

		wait := w.cfg.RetryDelay
		if err != nil {
			wait = backoff
			backoff = min(backoff*2, ceiling)
			w.logger.Error("stand-up job failed", "room", room, "err", err, "retry_in", wait)
		} else {
			backoff = w.cfg.RetryDelay
			w.logger.Info("room closed, rejoining", "room", room, "in", wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Session returns the active session for room.
func (w *Worker) Session(room string) (*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	sess, ok := w.sessions[room]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

func (w *Worker) claim(room string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.running[room]; busy {
		return false
	}
	w.running[room] = struct{}{}
	return true
}

func (w *Worker) release(room string) {
	w.mu.Lock()
	delete(w.running, room)
	w.mu.Unlock()
}

func (w *Worker) register(room string, sess *Session) {
	w.mu.Lock()
	w.sessions[room] = sess
	w.mu.Unlock()
}

func (w *Worker) unregister(room string) {
	w.mu.Lock()
	delete(w.sessions, room)
	w.mu.Unlock()
}
