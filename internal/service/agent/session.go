package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zhouzirui/standup/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/standup/backend/internal/model/speech"
	"github.com/zhouzirui/standup/backend/internal/realtime"
	chatsvc "github.com/zhouzirui/standup/backend/internal/service/chat"
	"github.com/zhouzirui/standup/backend/internal/service/speech"
)

// ErrEmptyTurn is returned for a turn without text.
var ErrEmptyTurn = errors.New("turn text is empty")

// Responder produces the agent's reply to one user turn.
type Responder interface {
	Respond(ctx context.Context, history []chat.Message, speaker, text string) (string, error)
}

// Session binds one running meeting: the joined room, its history and the
// dialogue that answers participants.
type Session struct {
	id        string
	room      realtime.Room
	chat      *chatsvc.Service
	synth     speech.Synthesizer
	responder Responder
	logger    *slog.Logger

	turnMu sync.Mutex
}

func newSession(id string, room realtime.Room, history *chatsvc.Service, synth speech.Synthesizer, logger *slog.Logger) *Session {
	return &Session{
		id:     id,
		room:   room,
		chat:   history,
		synth:  synth,
		logger: logger.With("component", "session", "session_id", id),
	}
}

// ID returns the history session identifier.
func (s *Session) ID() string { return s.id }

// Room returns the room name.
func (s *Session) Room() string { return s.room.Name() }

// Say records text as an assistant turn and publishes it to the room. Audio
// is attached when a synthesizer is configured; a synthesis failure falls
// back to text only.
func (s *Session) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if _, err := s.chat.SaveMessage(ctx, chat.Message{
		SessionID: s.id,
		Sender:    chat.SenderAssistant,
		Content:   text,
	}); err != nil {
		return fmt.Errorf("record reply: %w", err)
	}

	u := realtime.Utterance{Text: text}
	if s.synth != nil {
		resp, err := s.synth.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{SessionID: s.id, Text: text})
		if err != nil {
			s.logger.Warn("speech synthesis failed, publishing text only", "err", err)
		} else {
			u.Audio = resp.AudioData
			u.AudioFormat = resp.Format
		}
	}

	if err := s.room.Publish(ctx, u); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

// HandleTurn runs one participant turn through the dialogue and says the
// reply. Turns are processed one at a time.
func (s *Session) HandleTurn(ctx context.Context, speaker, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTurn
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	history, err := s.chat.LoadTranscript(ctx, s.id)
	if err != nil {
		return "", err
	}
	if _, err := s.chat.SaveMessage(ctx, chat.Message{
		SessionID:   s.id,
		Sender:      chat.SenderUser,
		Participant: speaker,
		Content:     text,
	}); err != nil {
		return "", err
	}

	reply, err := s.responder.Respond(ctx, history, speaker, text)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", nil
	}

	if err := s.Say(ctx, reply); err != nil {
		s.logger.Warn("failed to deliver reply", "speaker", speaker, "err", err)
	}
	return reply, nil
}
