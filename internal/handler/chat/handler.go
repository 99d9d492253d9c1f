package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/standup/backend/internal/model/chat"
	chatService "github.com/zhouzirui/standup/backend/internal/service/chat"
	tokensvc "github.com/zhouzirui/standup/backend/internal/service/token"
	"github.com/zhouzirui/standup/backend/pkg/utils"
)

// Verifier checks room access tokens.
type Verifier interface {
	Verify(raw, room string) (tokensvc.Grant, error)
}

// SessionIDs resolves the history session of the meeting running in room.
type SessionIDs func(room string) (string, error)

// Handler 会议记录的HTTP处理器
type Handler struct {
	chatSvc  *chatService.Service
	verifier Verifier
	sessions SessionIDs
}

// New 创建会议记录处理器
func New(chatSvc *chatService.Service, verifier Verifier, sessions SessionIDs) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		verifier: verifier,
		sessions: sessions,
	}
}

// RegisterRoutes 注册会议记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rooms/{roomName}/messages", h.handleListMessages)
}

type messagesResponse struct {
	SessionID string         `json:"sessionId"`
	Room      string         `json:"room"`
	Items     []chat.Message `json:"items"`
}

// handleListMessages 返回当前会议的对话记录
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "roomName")

	raw := utils.BearerToken(r)
	if raw == "" {
		utils.RespondError(w, http.StatusUnauthorized, "access token is required")
		return
	}
	if _, err := h.verifier.Verify(raw, room); err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "invalid access token")
		return
	}

	sessionID, err := h.sessions(room)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "no meeting running in room")
		return
	}

	items, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, messagesResponse{SessionID: sessionID, Room: room, Items: items})
}
