package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/zhouzirui/standup/backend/internal/model/chat"
	"github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/internal/realtime"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Connected() bool {
	return m.Called().Bool(0)
}

func (m *mockStore) Get(ctx context.Context, name string) (participant.Record, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(participant.Record), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, name string, draft participant.Draft) error {
	return m.Called(ctx, name, draft).Error(0)
}

func (m *mockStore) List(ctx context.Context) ([]participant.Summary, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]participant.Summary)
	return list, args.Error(1)
}

func (m *mockStore) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fakeSpeaker struct {
	mu   sync.Mutex
	said []string
}

func (f *fakeSpeaker) Say(_ context.Context, text string) error {
	f.mu.Lock()
	f.said = append(f.said, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSpeaker) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.said...)
}

type fakeRoom struct {
	name   string
	events chan realtime.Event

	mu           sync.Mutex
	published    []realtime.Utterance
	disconnected bool
}

func newFakeRoom(name string) *fakeRoom {
	return &fakeRoom{name: name, events: make(chan realtime.Event, 16)}
}

func (r *fakeRoom) Name() string { return r.name }

func (r *fakeRoom) Events() <-chan realtime.Event { return r.events }

func (r *fakeRoom) Publish(_ context.Context, u realtime.Utterance) error {
	r.mu.Lock()
	r.published = append(r.published, u)
	r.mu.Unlock()
	return nil
}

func (r *fakeRoom) Disconnect() {
	r.mu.Lock()
	r.disconnected = true
	r.mu.Unlock()
}

func (r *fakeRoom) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.published))
	for _, u := range r.published {
		out = append(out, u.Text)
	}
	return out
}

func (r *fakeRoom) isDisconnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnected
}

type fakeConnector struct {
	room *fakeRoom
}

func (c *fakeConnector) Connect(context.Context, string, string) (realtime.Room, error) {
	return c.room, nil
}

// scriptedConnector fails the first failures attempts (every attempt when
// negative), then hands out rooms in order, repeating the last one.
type scriptedConnector struct {
	failures int
	rooms    []*fakeRoom

	mu    sync.Mutex
	calls int
}

func (c *scriptedConnector) Connect(context.Context, string, string) (realtime.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failures < 0 || c.calls <= c.failures {
		return nil, errors.New("connection refused")
	}
	i := min(c.calls-max(c.failures, 0)-1, len(c.rooms)-1)
	return c.rooms[i], nil
}

func (c *scriptedConnector) attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// echoResponder replies with a fixed line and records what it was asked.
type echoResponder struct {
	reply string

	mu    sync.Mutex
	turns []string
	seen  []int
}

func (e *echoResponder) Respond(_ context.Context, history []chat.Message, speaker, text string) (string, error) {
	e.mu.Lock()
	e.turns = append(e.turns, speaker+": "+text)
	e.seen = append(e.seen, len(history))
	e.mu.Unlock()
	return e.reply, nil
}
