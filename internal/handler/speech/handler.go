package speech

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/standup/backend/internal/model/speech"
	"github.com/zhouzirui/standup/backend/internal/service/agent"
	chatservice "github.com/zhouzirui/standup/backend/internal/service/chat"
	speechsvc "github.com/zhouzirui/standup/backend/internal/service/speech"
	tokensvc "github.com/zhouzirui/standup/backend/internal/service/token"
	"github.com/zhouzirui/standup/backend/pkg/utils"
)

// Verifier checks room access tokens.
type Verifier interface {
	Verify(raw, room string) (tokensvc.Grant, error)
}

// RoomSession is the running meeting a turn is delivered to.
type RoomSession interface {
	ID() string
	HandleTurn(ctx context.Context, speaker, text string) (string, error)
}

// SessionLookup finds the running meeting for a room.
type SessionLookup func(room string) (RoomSession, error)

// Handler 会议语音回合处理器
type Handler struct {
	transcriber speechsvc.Transcriber
	verifier    Verifier
	sessions    SessionLookup
	chatSvc     *chatservice.Service
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// New 创建语音处理器。transcriber 为 nil 时语音上传返回 503。
func New(transcriber speechsvc.Transcriber, verifier Verifier, sessions SessionLookup, chatSvc *chatservice.Service, logger *slog.Logger) *Handler {
	return &Handler{
		transcriber: transcriber,
		verifier:    verifier,
		sessions:    sessions,
		chatSvc:     chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With("component", "speech_handler"),
	}
}

// RegisterRoutes 注册房间语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rooms/{roomName}", func(room chi.Router) {
		room.Post("/utterances", h.handleUtterance)
		room.Get("/feed", h.handleFeed)
	})
}

// authorize checks the bearer token, or the token query parameter for
// browsers that cannot set headers on a websocket upgrade.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, room string) (tokensvc.Grant, bool) {
	raw := utils.BearerToken(r)
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		utils.RespondError(w, http.StatusUnauthorized, "access token is required")
		return tokensvc.Grant{}, false
	}

	grant, err := h.verifier.Verify(raw, room)
	if err != nil {
		h.logger.Warn("rejected access token", "room", room, "err", err)
		utils.RespondError(w, http.StatusUnauthorized, "invalid access token")
		return tokensvc.Grant{}, false
	}
	return grant, true
}

func speakerName(g tokensvc.Grant) string {
	if g.Name != "" {
		return g.Name
	}
	return g.Identity
}

type utteranceResponse struct {
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
}

// handleUtterance transcribes an uploaded recording and feeds it to the
// meeting as a turn from the token holder.
func (h *Handler) handleUtterance(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "roomName")

	grant, ok := h.authorize(w, r, room)
	if !ok {
		return
	}

	sess, err := h.sessions(room)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "no meeting running in room")
		return
	}

	if h.transcriber == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech service not configured")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	asr, err := h.transcriber.TranscribeAudio(r.Context(), &speech.ASRRequest{
		SessionID: sess.ID(),
		AudioData: file,
		Filename:  header.Filename,
		Format:    inferAudioFormat(header.Filename),
		Language:  r.FormValue("language"),
	})
	if err != nil {
		h.logger.Error("transcription failed", "room", room, "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "transcription failed")
		return
	}

	reply, err := sess.HandleTurn(r.Context(), speakerName(grant), asr.Text)
	switch {
	case err == nil, errors.Is(err, agent.ErrEmptyTurn):
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "no meeting running in room")
		return
	default:
		h.logger.Error("turn failed", "room", room, "speaker", speakerName(grant), "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to process turn")
		return
	}

	utils.RespondJSON(w, http.StatusOK, utteranceResponse{Transcript: asr.Text, Reply: reply})
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".ogg":
		return ext[1:]
	default:
		return "wav"
	}
}
