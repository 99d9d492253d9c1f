package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/standup/backend/internal/realtime"
	"github.com/zhouzirui/standup/backend/internal/service/ai"
)

const (
	defaultExitTimeout = 30 * time.Second
	defaultRetryDelay  = 5 * time.Second
	maxRetryDelay      = time.Minute
)

// DialogueFactory builds the responder for one meeting, bound to its agent's
// tools.
type DialogueFactory func(ctx context.Context, tools ai.Toolset) (Responder, error)

// AIDialogues adapts the dialogue engine to a DialogueFactory.
func AIDialogues(svc *ai.Service) DialogueFactory {
	return func(ctx context.Context, tools ai.Toolset) (Responder, error) {
		return svc.NewDialogue(ctx, tools)
	}
}

// chatPayload is the body of a room chat message.
type chatPayload struct {
	Message string `json:"message"`
}

func chatText(payload []byte) string {
	var p chatPayload
	if err := json.Unmarshal(payload, &p); err == nil && p.Message != "" {
		return strings.TrimSpace(p.Message)
	}
	return strings.TrimSpace(string(payload))
}

// runJob joins the room and serves one meeting until ctx ends, the room
// disconnects or the meeting duration elapses.
func (w *Worker) runJob(ctx context.Context, roomName string) error {
	if !w.claim(roomName) {
		return ErrJobRunning
	}
	defer w.release(roomName)

	if w.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Duration)
		defer cancel()
	}

	logger := w.logger.With("room", roomName)
	logger.Info("starting stand-up job")

	room, err := w.deps.Connector.Connect(ctx, roomName, w.cfg.Options.AgentIdentity)
	if err != nil {
		return fmt.Errorf("connect to room %s: %w", roomName, err)
	}

	history, err := w.deps.Chat.CreateSession(ctx, roomName)
	if err != nil {
		room.Disconnect()
		return fmt.Errorf("create history: %w", err)
	}

	sess := newSession(history.ID, room, w.deps.Chat, w.deps.Synth, logger)
	agent := NewConversationAgent(w.deps.Store, w.deps.Meeting, w.deps.Script, sess, w.cfg.Options, logger)

	responder, err := w.deps.Dialogues(ctx, agent)
	if err != nil {
		w.deps.Chat.CloseSession(history.ID)
		room.Disconnect()
		return fmt.Errorf("build dialogue: %w", err)
	}
	sess.responder = responder

	w.register(roomName, sess)
	defer w.shutdown(ctx, sess, agent)

	w.enqueue(roomName, "on_enter", func() { agent.OnEnter(ctx) })

	for {
		select {
		case <-ctx.Done():
			logger.Info("stand-up job finished", "reason", context.Cause(ctx))
			return nil
		case ev, ok := <-room.Events():
			if !ok || ev.Kind == realtime.Disconnected {
				logger.Info("room disconnected")
				return nil
			}
			w.dispatch(ctx, sess, agent, ev)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, sess *Session, agent *ConversationAgent, ev realtime.Event) {
	room := sess.Room()
	switch ev.Kind {
	case realtime.ParticipantConnected:
		w.enqueue(room, "participant_connected", func() { agent.OnParticipantConnected(ctx, ev.Identity) })
	case realtime.ParticipantDisconnected:
		w.enqueue(room, "participant_disconnected", func() { agent.OnParticipantDisconnected(ctx, ev.Identity) })
	case realtime.DataReceived:
		if ev.Topic != realtime.TopicChat {
			return
		}
		text := chatText(ev.Payload)
		if text == "" {
			return
		}
		w.enqueue(room, "chat_turn", func() {
			if _, err := sess.HandleTurn(ctx, ev.Identity, text); err != nil {
				w.logger.Error("chat turn failed", "room", room, "identity", ev.Identity, "err", err)
			}
		})
	}
}

func (w *Worker) enqueue(room, name string, fn func()) {
	err := w.queue.Enqueue(Task{Room: room, Name: name, Run: func(context.Context) error {
		fn()
		return nil
	}})
	if err != nil {
		w.logger.Warn("dropping room event", "room", room, "task", name, "err", err)
	}
}

// shutdown runs once per job: it stops new turns, drains the room lane,
// writes the transcript, flushes drafts and leaves the room.
func (w *Worker) shutdown(ctx context.Context, sess *Session, agent *ConversationAgent) {
	room := sess.Room()
	w.unregister(room)
	w.queue.Drain(room)

	exitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.ExitTimeout)
	defer cancel()

	if w.cfg.TranscriptDir != "" {
		path, err := w.deps.Chat.WriteTranscript(exitCtx, sess.ID(), w.cfg.TranscriptDir)
		if err != nil {
			w.logger.Error("failed to write transcript", "room", room, "err", err)
		} else {
			w.logger.Info("transcript saved", "room", room, "path", path)
		}
	}

	report := agent.OnExit(exitCtx)
	w.logger.Info("session data flushed", "room", room,
		"saved", len(report.Saved), "failed", len(report.Failed), "skipped", report.Skipped)

	sess.room.Disconnect()
	w.deps.Chat.CloseSession(sess.ID())
}
