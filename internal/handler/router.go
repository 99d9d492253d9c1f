package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zhouzirui/standup/backend/internal/handler/chat"
	"github.com/zhouzirui/standup/backend/internal/handler/meeting"
	"github.com/zhouzirui/standup/backend/internal/handler/participant"
	"github.com/zhouzirui/standup/backend/internal/handler/speech"
	"github.com/zhouzirui/standup/backend/internal/handler/token"
	participantModel "github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/internal/service/agent"
	chatService "github.com/zhouzirui/standup/backend/internal/service/chat"
	meetingService "github.com/zhouzirui/standup/backend/internal/service/meeting"
	speechService "github.com/zhouzirui/standup/backend/internal/service/speech"
	tokenService "github.com/zhouzirui/standup/backend/internal/service/token"
)

// Deps are the services the HTTP API reads from.
type Deps struct {
	Meeting     *meetingService.State
	Store       participantModel.Store
	Chat        *chatService.Service
	Issuer      *tokenService.Issuer
	RealtimeURL string
	Transcriber speechService.Transcriber // nil when speech is not configured
	Worker      *agent.Worker             // nil when the agent is disabled
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	meetingHandler := meeting.New(deps.Meeting, deps.Store, deps.Worker != nil)
	participantHandler := participant.New(deps.Store, deps.Logger)
	tokenHandler := token.New(deps.Issuer, deps.RealtimeURL, deps.Meeting.RoomName(), deps.Logger)
	speechHandler := speech.New(deps.Transcriber, deps.Issuer, roomSessions(deps.Worker), deps.Chat, deps.Logger)
	chatHandler := chat.New(deps.Chat, deps.Issuer, sessionIDs(deps.Worker))

	r.Route("/api", func(api chi.Router) {
		meetingHandler.RegisterRoutes(api)
		participantHandler.RegisterRoutes(api)
		tokenHandler.RegisterRoutes(api)
		speechHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
	})

	return r
}

func roomSessions(w *agent.Worker) speech.SessionLookup {
	return func(room string) (speech.RoomSession, error) {
		if w == nil {
			return nil, agent.ErrNoSession
		}
		sess, err := w.Session(room)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func sessionIDs(w *agent.Worker) chat.SessionIDs {
	return func(room string) (string, error) {
		if w == nil {
			return "", agent.ErrNoSession
		}
		sess, err := w.Session(room)
		if err != nil {
			return "", err
		}
		return sess.ID(), nil
	}
}
