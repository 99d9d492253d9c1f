package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/standup/backend/internal/model/chat"
)

var (
	ErrRoomRequired    = errors.New("room name is required")
	ErrSessionNotFound = errors.New("session not found")
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Service keeps the conversation history of running meetings.
type Service struct {
	mu          sync.RWMutex
	sessions    map[string]chat.Session
	messages    map[string][]chat.Message
	subscribers map[string]map[chan chat.Message]struct{}
	now         func() time.Time
}

// NewService bootstraps the in-memory history service.
func NewService() *Service {
	return &Service{
		sessions:    make(map[string]chat.Session),
		messages:    make(map[string][]chat.Message),
		subscribers: make(map[string]map[chan chat.Message]struct{}),
		now:         time.Now,
	}
}

// CreateSession opens the history for one meeting in room.
func (s *Service) CreateSession(_ context.Context, room string) (chat.Session, error) {
	if room == "" {
		return chat.Session{}, ErrRoomRequired
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		Room:      room,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 32)
	s.mu.Unlock()

	return session, nil
}

// SaveMessage appends a message to the session history and fans it out to
// subscribers. Slow subscribers miss messages rather than block the agent.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) (chat.Message, error) {
	if message.SessionID == "" {
		return chat.Message{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	for ch := range s.subscribers[message.SessionID] {
		select {
		case ch <- message:
		default:
		}
	}
	return message, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Subscribe streams messages saved after the call. The returned func
// unsubscribes and closes the channel.
func (s *Service) Subscribe(sessionID string) (<-chan chat.Message, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, nil, ErrSessionNotFound
	}

	ch := make(chan chat.Message, 32)
	if s.subscribers[sessionID] == nil {
		s.subscribers[sessionID] = make(map[chan chat.Message]struct{})
	}
	s.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if subs, ok := s.subscribers[sessionID]; ok {
				if _, ok := subs[ch]; ok {
					delete(subs, ch)
					close(ch)
				}
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// WriteTranscript saves the session history to
// dir/transcript_<room>_<YYYYMMDD_HHMMSS>.json and returns the path.
func (s *Service) WriteTranscript(ctx context.Context, sessionID, dir string) (string, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	items, err := s.LoadTranscript(ctx, sessionID)
	if err != nil {
		return "", err
	}

	ended := s.now().UTC()
	doc := chat.Transcript{
		SessionID: session.ID,
		Room:      session.Room,
		StartedAt: session.CreatedAt,
		EndedAt:   ended,
		Items:     items,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}

	name := fmt.Sprintf("transcript_%s_%s.json", unsafeFileChars.ReplaceAllString(session.Room, "_"), ended.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// CloseSession drops the in-memory history and disconnects subscribers.
func (s *Service) CloseSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subscribers[sessionID] {
		close(ch)
	}
	delete(s.subscribers, sessionID)
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
}
