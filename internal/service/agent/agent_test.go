package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/internal/service/ai"
	"github.com/zhouzirui/standup/backend/internal/service/meeting"
)

func seededStore() *participant.MemoryStore {
	return participant.NewMemoryStore([]participant.Record{{
		Name:    "Alice",
		Project: "Apollo",
		Role:    "Backend Engineer",
		Logs: []participant.SessionLog{{
			Timestamp: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
			TodayPlan: "finish the billing API",
			Blockers:  []string{"API down"},
		}},
	}})
}

func newTestAgent(store participant.Store, speaker Speaker) *ConversationAgent {
	state := meeting.NewState("daily-standup-room", "http://localhost:3000")
	return NewConversationAgent(store, state, ai.DefaultScript(), speaker, Options{AgentIdentity: "neha-agent"}, discardLogger())
}

func TestLookupParticipantFound(t *testing.T) {
	a := newTestAgent(seededStore(), &fakeSpeaker{})

	got := a.LookupParticipant(context.Background(), "alice")

	assert.Contains(t, got, "Found alice in database.")
	assert.Contains(t, got, "Project: Apollo.")
	assert.Contains(t, got, "Role: Backend Engineer.")
	assert.Contains(t, got, "Last planned work: finish the billing API.")
	assert.Contains(t, got, "Previous blockers: API down.")
	assert.Contains(t, got, "Ready for personalized stand-up.")
}

func TestLookupParticipantNotFound(t *testing.T) {
	a := newTestAgent(seededStore(), &fakeSpeaker{})

	got := a.LookupParticipant(context.Background(), "Bob")
	assert.Equal(t, "New team member Bob. No previous history found.", got)
}

func TestLookupParticipantStoreUnavailable(t *testing.T) {
	a := newTestAgent(participant.DisabledStore{}, &fakeSpeaker{})

	got := a.LookupParticipant(context.Background(), "Alice")
	assert.Equal(t, "Database unavailable. Proceeding with Alice.", got)
}

func TestLookupParticipantQueryError(t *testing.T) {
	store := &mockStore{}
	store.On("Connected").Return(true)
	store.On("Get", mock.Anything, "Alice").Return(participant.Record{}, errors.New("cursor timeout"))

	a := newTestAgent(store, &fakeSpeaker{})

	got := a.LookupParticipant(context.Background(), "Alice")
	assert.Equal(t, "Error looking up Alice. Proceeding with stand-up.", got)
	store.AssertExpectations(t)
}

func TestSaveSessionDataAppendsBlockersAndOverwritesPlan(t *testing.T) {
	a := newTestAgent(seededStore(), &fakeSpeaker{})
	ctx := context.Background()

	assert.Equal(t, ackRecorded, a.SaveSessionData(ctx, "Bob", participant.FieldBlockers, "waiting on review"))
	assert.Equal(t, ackRecorded, a.SaveSessionData(ctx, "bob", participant.FieldBlockers, "flaky CI"))
	assert.Equal(t, ackRecorded, a.SaveSessionData(ctx, "Bob", participant.FieldTodayPlan, "write tests"))
	assert.Equal(t, ackRecorded, a.SaveSessionData(ctx, "Bob", participant.FieldTodayPlan, "ship the release"))
	assert.Equal(t, ackRecorded, a.SaveSessionData(ctx, "Bob", "mood", "great"))

	d, ok := a.Draft("BOB")
	require.True(t, ok)
	assert.Equal(t, []string{"waiting on review", "flaky CI"}, d.Blockers)
	assert.Equal(t, "ship the release", d.TodayPlan)
}

func TestSaveSessionDataWithoutName(t *testing.T) {
	a := newTestAgent(seededStore(), &fakeSpeaker{})

	assert.Equal(t, ackFallback, a.SaveSessionData(context.Background(), "  ", participant.FieldTodayPlan, "x"))
	_, ok := a.Draft("")
	assert.False(t, ok)
}

func TestDraftSeededFromLookup(t *testing.T) {
	a := newTestAgent(seededStore(), &fakeSpeaker{})
	ctx := context.Background()

	a.LookupParticipant(ctx, "Alice")
	a.SaveSessionData(ctx, "Alice", participant.FieldYesterdayWork, "fixed the cache")

	d, ok := a.Draft("alice")
	require.True(t, ok)
	assert.Equal(t, "Apollo", d.Project)
	assert.Equal(t, "Backend Engineer", d.Role)
}

func TestOnExitContinuesPastFailedUpdate(t *testing.T) {
	store := &mockStore{}
	store.On("Connected").Return(true)
	store.On("Update", mock.Anything, "Alice", mock.Anything).Return(errors.New("write conflict"))
	store.On("Update", mock.Anything, "Bob", mock.Anything).Return(nil)

	a := newTestAgent(store, &fakeSpeaker{})
	ctx := context.Background()
	a.SaveSessionData(ctx, "Alice", participant.FieldTodayPlan, "plan A")
	a.SaveSessionData(ctx, "Bob", participant.FieldTodayPlan, "plan B")

	report := a.OnExit(ctx)

	assert.Equal(t, []string{"Bob"}, report.Saved)
	assert.Equal(t, []string{"Alice"}, report.Failed)
	assert.False(t, report.Skipped)
	store.AssertNumberOfCalls(t, "Update", 2)
}

func TestOnExitPersistsToStore(t *testing.T) {
	store := seededStore()
	a := newTestAgent(store, &fakeSpeaker{})
	ctx := context.Background()

	a.LookupParticipant(ctx, "alice")
	a.SaveSessionData(ctx, "alice", participant.FieldBlockers, "no staging env")

	report := a.OnExit(ctx)
	require.Equal(t, []string{"alice"}, report.Saved)

	rec, err := store.Get(ctx, "Alice")
	require.NoError(t, err)
	require.Len(t, rec.Logs, 2)
	assert.Equal(t, "Apollo", rec.Project)
	assert.Equal(t, []string{"no staging env"}, rec.Logs[1].Blockers)
}

func TestOnExitSkipsWhenStoreDisconnected(t *testing.T) {
	a := newTestAgent(participant.DisabledStore{}, &fakeSpeaker{})
	a.SaveSessionData(context.Background(), "Alice", participant.FieldTodayPlan, "plan")

	report := a.OnExit(context.Background())
	assert.True(t, report.Skipped)
	assert.Empty(t, report.Saved)
}

func TestOnParticipantConnectedGreetings(t *testing.T) {
	speaker := &fakeSpeaker{}
	a := newTestAgent(seededStore(), speaker)
	ctx := context.Background()

	a.OnParticipantConnected(ctx, "Alice")
	a.OnParticipantConnected(ctx, "Bob")
	a.OnParticipantConnected(ctx, "neha-agent")

	lines := speaker.lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Welcome back Alice! I see you're working as a Backend Engineer on the Apollo project.")
	assert.Contains(t, lines[1], "Welcome Bob! I don't see you in our team database yet")
	assert.Contains(t, lines[1], ai.StandupQuestions[0])
}

func TestOnParticipantConnectedFallbackRole(t *testing.T) {
	speaker := &fakeSpeaker{}
	store := participant.NewMemoryStore([]participant.Record{{Name: "Carol"}})
	a := newTestAgent(store, speaker)

	a.OnParticipantConnected(context.Background(), "Carol")

	lines := speaker.lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "working as a team member on your current project")
}

func TestOnEnterActivatesMeeting(t *testing.T) {
	speaker := &fakeSpeaker{}
	state := meeting.NewState("daily-standup-room", "http://localhost:3000")
	infoPath := filepath.Join(t.TempDir(), "meeting_info.json")
	a := NewConversationAgent(seededStore(), state, ai.DefaultScript(), speaker, Options{InfoPath: infoPath}, discardLogger())

	a.OnEnter(context.Background())

	assert.True(t, state.Active())
	require.Equal(t, []string{ai.DefaultScript().OpeningMessage()}, speaker.lines())

	data, err := os.ReadFile(infoPath)
	require.NoError(t, err)
	var info meeting.Info
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, meeting.StatusActive, info.Status)
	require.NotNil(t, info.MeetingLink)
	assert.Equal(t, "http://localhost:3000/meeting?room=daily-standup-room", *info.MeetingLink)
}

func TestOnEnterCancelledDuringWarmup(t *testing.T) {
	speaker := &fakeSpeaker{}
	state := meeting.NewState("daily-standup-room", "http://localhost:3000")
	a := NewConversationAgent(seededStore(), state, ai.DefaultScript(), speaker, Options{WarmupDelay: time.Hour}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.OnEnter(ctx)

	assert.False(t, state.Active())
	assert.Empty(t, speaker.lines())
}
