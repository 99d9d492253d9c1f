package participant

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/pkg/utils"
)

// Handler 参与者校验处理器
type Handler struct {
	store  participant.Store
	logger *slog.Logger
}

// New 创建参与者处理器
func New(store participant.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger.With("component", "participant_handler")}
}

// RegisterRoutes 注册参与者相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/validate-participant", h.handleValidate)
}

type participantView struct {
	Name        string `json:"name"`
	Project     string `json:"project"`
	Role        string `json:"role"`
	IsReturning bool   `json:"isReturning"`
}

type validation struct {
	Valid       bool             `json:"valid"`
	Participant *participantView `json:"participant,omitempty"`
	Message     string           `json:"message"`
}

// handleValidate looks the name up so the frontend can greet returning
// members. Store problems never block joining.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("validation panicked", "panic", rec)
			utils.RespondJSON(w, http.StatusInternalServerError, validation{Message: "Validation failed"})
		}
	}()

	var payload struct {
		Name string `json:"name"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, validation{Message: "Name is required"})
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		utils.RespondJSON(w, http.StatusBadRequest, validation{Message: "Name is required"})
		return
	}

	newcomer := &participantView{Name: name}

	if !h.store.Connected() {
		utils.RespondJSON(w, http.StatusOK, validation{
			Valid:       true,
			Participant: newcomer,
			Message:     fmt.Sprintf("Welcome %s! (Database unavailable)", name),
		})
		return
	}

	rec, err := h.store.Get(r.Context(), name)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, validation{
			Valid: true,
			Participant: &participantView{
				Name:        rec.Name,
				Project:     rec.Project,
				Role:        rec.Role,
				IsReturning: true,
			},
			Message: fmt.Sprintf("Welcome back, %s!", rec.Name),
		})
	case errors.Is(err, participant.ErrUnavailable):
		utils.RespondJSON(w, http.StatusOK, validation{
			Valid:       true,
			Participant: newcomer,
			Message:     fmt.Sprintf("Welcome %s! (Database unavailable)", name),
		})
	default:
		if !errors.Is(err, participant.ErrNotFound) {
			h.logger.Warn("participant lookup failed, treating as new", "name", name, "err", err)
		}
		utils.RespondJSON(w, http.StatusOK, validation{
			Valid:       true,
			Participant: newcomer,
			Message:     fmt.Sprintf("Welcome to the team, %s!", name),
		})
	}
}
