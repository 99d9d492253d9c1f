package token

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	tokensvc "github.com/zhouzirui/standup/backend/internal/service/token"
	"github.com/zhouzirui/standup/backend/pkg/utils"
)

// Issuer mints room access tokens.
type Issuer interface {
	Issue(g tokensvc.Grant) (string, error)
}

// Handler 房间令牌处理器
type Handler struct {
	issuer      Issuer
	url         string
	defaultRoom string
	logger      *slog.Logger
}

// New 创建令牌处理器
func New(issuer Issuer, url, defaultRoom string, logger *slog.Logger) *Handler {
	return &Handler{
		issuer:      issuer,
		url:         url,
		defaultRoom: defaultRoom,
		logger:      logger.With("component", "token_handler"),
	}
}

// RegisterRoutes 注册令牌相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-token", h.handleGenerate)
}

type tokenResponse struct {
	Token           string `json:"token"`
	URL             string `json:"url"`
	RoomName        string `json:"roomName"`
	ParticipantName string `json:"participantName"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		RoomName string `json:"roomName"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		utils.RespondError(w, http.StatusBadRequest, "Name is required")
		return
	}
	room := strings.TrimSpace(payload.RoomName)
	if room == "" {
		room = h.defaultRoom
	}

	jwtToken, err := h.issuer.Issue(tokensvc.Grant{Identity: name, Name: name, Room: room})
	if err != nil {
		h.logger.Error("token generation failed", "room", room, "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	utils.RespondJSON(w, http.StatusOK, tokenResponse{
		Token:           jwtToken,
		URL:             h.url,
		RoomName:        room,
		ParticipantName: name,
	})
}
