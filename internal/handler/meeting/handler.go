package meeting

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
	meetingsvc "github.com/zhouzirui/standup/backend/internal/service/meeting"
	"github.com/zhouzirui/standup/backend/pkg/utils"
)

// Handler 会议状态与健康检查处理器
type Handler struct {
	state        *meetingsvc.State
	store        participant.Store
	agentEnabled bool
}

// New 创建会议处理器
func New(state *meetingsvc.State, store participant.Store, agentEnabled bool) *Handler {
	return &Handler{state: state, store: store, agentEnabled: agentEnabled}
}

// RegisterRoutes 注册会议相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/meeting-info", h.handleMeetingInfo)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleMeetingInfo(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.state.Snapshot())
}

type healthResponse struct {
	Status       string            `json:"status"`
	Store        string            `json:"store"`
	Meeting      meetingsvc.Status `json:"meeting"`
	AgentEnabled bool              `json:"agentEnabled"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	store := "disconnected"
	if h.store != nil && h.store.Connected() {
		store = "connected"
	}
	utils.RespondJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Store:        store,
		Meeting:      h.state.Snapshot().Status,
		AgentEnabled: h.agentEnabled,
	})
}
