package meeting

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
	meetingsvc "github.com/zhouzirui/standup/backend/internal/service/meeting"
)

func setupRouter(store participant.Store) (*chi.Mux, *meetingsvc.State) {
	state := meetingsvc.NewState("daily-standup-room", "http://localhost:3000")
	r := chi.NewRouter()
	New(state, store, true).RegisterRoutes(r)
	return r, state
}

func TestMeetingInfoBeforeActivation(t *testing.T) {
	r, _ := setupRouter(participant.NewMemoryStore(nil))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/meeting-info", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["roomName"] != "daily-standup-room" {
		t.Fatalf("unexpected roomName %v", body["roomName"])
	}
	if v, ok := body["meetingLink"]; !ok || v != nil {
		t.Fatalf("expected null meetingLink, got %v", v)
	}
	if body["status"] != "inactive" || body["agentActive"] != false {
		t.Fatalf("unexpected status %v / %v", body["status"], body["agentActive"])
	}
}

func TestMeetingInfoAfterActivation(t *testing.T) {
	r, state := setupRouter(participant.NewMemoryStore(nil))
	state.GenerateLink()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/meeting-info", nil))

	var info meetingsvc.Info
	if err := json.Unmarshal(resp.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if info.MeetingLink == nil || *info.MeetingLink != "http://localhost:3000/meeting?room=daily-standup-room" {
		t.Fatalf("unexpected link %v", info.MeetingLink)
	}
	if !info.AgentActive || info.Status != meetingsvc.StatusActive {
		t.Fatalf("expected active meeting, got %+v", info)
	}
}

func TestHealthReportsStore(t *testing.T) {
	r, _ := setupRouter(participant.DisabledStore{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body healthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.Store != "disconnected" || body.Meeting != meetingsvc.StatusInactive || !body.AgentEnabled {
		t.Fatalf("unexpected health %+v", body)
	}
}
