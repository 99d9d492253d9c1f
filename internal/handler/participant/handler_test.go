package participant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
)

type panickingStore struct {
	participant.DisabledStore
}

func (panickingStore) Connected() bool { return true }

func (panickingStore) Get(context.Context, string) (participant.Record, error) {
	panic("driver exploded")
}

func setupRouter(store participant.Store) *chi.Mux {
	r := chi.NewRouter()
	New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(r)
	return r
}

func validate(t *testing.T, r http.Handler, body string) (int, validation) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/validate-participant", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var out validation
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return resp.Code, out
}

func TestValidateRequiresName(t *testing.T) {
	r := setupRouter(participant.NewMemoryStore(nil))

	for _, body := range []string{`{"name":"   "}`, `{}`, `not json`} {
		code, out := validate(t, r, body)
		assert.Equal(t, http.StatusBadRequest, code, body)
		assert.False(t, out.Valid)
		assert.Equal(t, "Name is required", out.Message)
	}
}

func TestValidateReturningParticipant(t *testing.T) {
	r := setupRouter(participant.NewMemoryStore([]participant.Record{{Name: "Priya", Project: "Apollo", Role: "QA"}}))

	code, out := validate(t, r, `{"name":" priya "}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, out.Valid)
	require.NotNil(t, out.Participant)
	assert.True(t, out.Participant.IsReturning)
	assert.Equal(t, "Priya", out.Participant.Name)
	assert.Equal(t, "Apollo", out.Participant.Project)
	assert.Equal(t, "Welcome back, Priya!", out.Message)
}

func TestValidateNewParticipant(t *testing.T) {
	r := setupRouter(participant.NewMemoryStore(nil))

	code, out := validate(t, r, `{"name":"Sam"}`)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, out.Participant)
	assert.False(t, out.Participant.IsReturning)
	assert.Equal(t, "Welcome to the team, Sam!", out.Message)
}

func TestValidateStoreUnavailable(t *testing.T) {
	r := setupRouter(participant.DisabledStore{})

	code, out := validate(t, r, `{"name":"Sam"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, out.Valid)
	assert.Equal(t, "Welcome Sam! (Database unavailable)", out.Message)
}

func TestValidateRecoversFromPanic(t *testing.T) {
	r := setupRouter(panickingStore{})

	code, out := validate(t, r, `{"name":"Sam"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, out.Valid)
	assert.Equal(t, "Validation failed", out.Message)
}
