package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/standup/backend/internal/model/chat"
	"github.com/zhouzirui/standup/backend/internal/model/speech"
	chatservice "github.com/zhouzirui/standup/backend/internal/service/chat"
	speechsvc "github.com/zhouzirui/standup/backend/internal/service/speech"
	tokensvc "github.com/zhouzirui/standup/backend/internal/service/token"
)

const room = "daily-standup-room"

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) TranscribeAudio(_ context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(req.AudioData); err != nil {
		return nil, err
	}
	return &speech.ASRResponse{SessionID: req.SessionID, Text: f.text}, nil
}

// fakeSession records turns in the shared history and answers with a
// fixed reply.
type fakeSession struct {
	id      string
	chatSvc *chatservice.Service
	reply   string
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) HandleTurn(ctx context.Context, speaker, text string) (string, error) {
	if _, err := f.chatSvc.SaveMessage(ctx, chat.Message{SessionID: f.id, Sender: chat.SenderUser, Participant: speaker, Content: text}); err != nil {
		return "", err
	}
	if _, err := f.chatSvc.SaveMessage(ctx, chat.Message{SessionID: f.id, Sender: chat.SenderAssistant, Content: f.reply}); err != nil {
		return "", err
	}
	return f.reply, nil
}

type fixture struct {
	router  *chi.Mux
	issuer  *tokensvc.Issuer
	chatSvc *chatservice.Service
	session *fakeSession
}

func setup(t *testing.T, transcriber speechsvc.Transcriber, running bool) *fixture {
	t.Helper()

	chatSvc := chatservice.NewService()
	s, err := chatSvc.CreateSession(context.Background(), room)
	require.NoError(t, err)

	f := &fixture{
		issuer:  tokensvc.NewIssuer("devkey", "a-very-long-development-secret-value", time.Hour),
		chatSvc: chatSvc,
		session: &fakeSession{id: s.ID, chatSvc: chatSvc, reply: "Thanks Priya. Any blockers?"},
	}

	lookup := func(name string) (RoomSession, error) {
		if !running || name != room {
			return nil, errors.New("no meeting")
		}
		return f.session, nil
	}

	f.router = chi.NewRouter()
	New(transcriber, f.issuer, lookup, chatSvc, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(f.router)
	return f
}

func (f *fixture) token(t *testing.T, forRoom string) string {
	t.Helper()
	raw, err := f.issuer.Issue(tokensvc.Grant{Identity: "Priya", Name: "Priya", Room: forRoom})
	require.NoError(t, err)
	return raw
}

func uploadRequest(t *testing.T, token string, withAudio bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if withAudio {
		part, err := mw.CreateFormFile("audio", "turn.webm")
		require.NoError(t, err)
		_, err = part.Write([]byte("fake-audio"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("language", "en"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/rooms/"+room+"/utterances", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestUtteranceTurn(t *testing.T) {
	f := setup(t, &fakeTranscriber{text: "Yesterday I finished the login page"}, true)

	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, uploadRequest(t, f.token(t, room), true))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out utteranceResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "Yesterday I finished the login page", out.Transcript)
	assert.Equal(t, "Thanks Priya. Any blockers?", out.Reply)

	items, err := f.chatSvc.LoadTranscript(context.Background(), f.session.id)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Priya", items[0].Participant)
}

func TestUtteranceStatusCodes(t *testing.T) {
	cases := []struct {
		name        string
		transcriber speechsvc.Transcriber
		running     bool
		token       func(f *fixture) string
		audio       bool
		want        int
	}{
		{
			name:        "missing token",
			transcriber: &fakeTranscriber{text: "hi"},
			running:     true,
			token:       func(*fixture) string { return "" },
			audio:       true,
			want:        http.StatusUnauthorized,
		},
		{
			name:        "token for another room",
			transcriber: &fakeTranscriber{text: "hi"},
			running:     true,
			token:       func(f *fixture) string { return f.token(t, "retro") },
			audio:       true,
			want:        http.StatusUnauthorized,
		},
		{
			name:        "no meeting",
			transcriber: &fakeTranscriber{text: "hi"},
			running:     false,
			token:       func(f *fixture) string { return f.token(t, room) },
			audio:       true,
			want:        http.StatusNotFound,
		},
		{
			name:        "speech not configured",
			transcriber: nil,
			running:     true,
			token:       func(f *fixture) string { return f.token(t, room) },
			audio:       true,
			want:        http.StatusServiceUnavailable,
		},
		{
			name:        "missing audio",
			transcriber: &fakeTranscriber{text: "hi"},
			running:     true,
			token:       func(f *fixture) string { return f.token(t, room) },
			audio:       false,
			want:        http.StatusBadRequest,
		},
		{
			name:        "transcription failure",
			transcriber: &fakeTranscriber{err: errors.New("upstream 502")},
			running:     true,
			token:       func(f *fixture) string { return f.token(t, room) },
			audio:       true,
			want:        http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, tc.transcriber, tc.running)
			resp := httptest.NewRecorder()
			f.router.ServeHTTP(resp, uploadRequest(t, tc.token(f), tc.audio))
			assert.Equal(t, tc.want, resp.Code, resp.Body.String())
		})
	}
}

func TestInferAudioFormat(t *testing.T) {
	assert.Equal(t, "webm", inferAudioFormat("turn.WEBM"))
	assert.Equal(t, "mp3", inferAudioFormat("a.mp3"))
	assert.Equal(t, "wav", inferAudioFormat("blob"))
}

func TestFeedStreamsConversation(t *testing.T) {
	f := setup(t, nil, true)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + room + "/feed?token=" + f.token(t, room)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var hello outgoingMessage
	require.NoError(t, ws.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Type)

	require.NoError(t, ws.WriteJSON(inboundMessage{Type: "text", Text: "No blockers today"}))

	var got []chat.Message
	for len(got) < 2 {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var raw struct {
			Type string       `json:"type"`
			Data chat.Message `json:"data"`
		}
		require.NoError(t, ws.ReadJSON(&raw))
		if raw.Type == "message" {
			got = append(got, raw.Data)
		}
	}
	assert.Equal(t, "No blockers today", got[0].Content)
	assert.Equal(t, "Priya", got[0].Participant)
	assert.Equal(t, "Thanks Priya. Any blockers?", got[1].Content)

	f.chatSvc.CloseSession(f.session.id)
	var closed outgoingMessage
	require.NoError(t, ws.ReadJSON(&closed))
	assert.Equal(t, "closed", closed.Type)
}

func TestFeedRejectsMissingToken(t *testing.T) {
	f := setup(t, nil, true)

	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/rooms/"+room+"/feed", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
