package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/standup/backend/internal/config"
	"github.com/zhouzirui/standup/backend/internal/handler"
	"github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/internal/realtime/livekit"
	"github.com/zhouzirui/standup/backend/internal/service/agent"
	"github.com/zhouzirui/standup/backend/internal/service/ai"
	"github.com/zhouzirui/standup/backend/internal/service/chat"
	"github.com/zhouzirui/standup/backend/internal/service/meeting"
	"github.com/zhouzirui/standup/backend/internal/service/speech"
	"github.com/zhouzirui/standup/backend/internal/service/token"
	"github.com/zhouzirui/standup/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Warn("no .env file loaded, using system environment only", "err", envErr)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("stand-up backend stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 数据库不可用时降级运行，不影响启动。
	participants := store.Open(ctx, cfg.Store, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = participants.Close(closeCtx)
	}()

	state := meeting.NewState(cfg.Meeting.RoomName, cfg.Meeting.SiteURL)
	history := chat.NewService()
	issuer := token.NewIssuer(cfg.Realtime.APIKey, cfg.Realtime.APISecret, cfg.Realtime.TokenTTL)

	var speechSvc *speech.Service
	if cfg.Speech.Enabled() {
		svc, err := speech.NewService(cfg.Speech)
		if err != nil {
			return err
		}
		speechSvc = svc
		logger.Info("speech service initialized", "stt", cfg.Speech.STTModel, "tts", cfg.Speech.TTSModel)
	} else {
		logger.Warn("OPENAI_API_KEY not configured, agent replies are text only")
	}

	worker, err := newWorker(ctx, cfg, logger, participants, state, history, speechSvc)
	if err != nil {
		return err
	}

	deps := handler.Deps{
		Meeting:     state,
		Store:       participants,
		Chat:        history,
		Issuer:      issuer,
		RealtimeURL: cfg.Realtime.URL,
		Worker:      worker,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	}
	if speechSvc != nil {
		deps.Transcriber = speechSvc
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("stand-up backend listening", "addr", srv.Addr)
		return runServer(gctx, srv)
	})
	if worker != nil {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	return g.Wait()
}

// newWorker prewarms the dialogue model and builds the agent worker. It
// returns nil when the room service or the model is not configured; a model
// that is configured but cannot be built is fatal.
func newWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, participants participant.Store, state *meeting.State, history *chat.Service, speechSvc *speech.Service) (*agent.Worker, error) {
	if !cfg.Realtime.Enabled() {
		logger.Warn("room service not configured, agent disabled")
		return nil, nil
	}
	if !cfg.AI.Enabled() {
		logger.Warn("Ark credentials not configured, agent disabled")
		return nil, nil
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	aiSvc := ai.NewService(chatModel, ai.DefaultScript(), cfg.AI.MaxSteps, logger)
	logger.Info("dialogue model ready", "model", cfg.AI.Model)

	deps := agent.Deps{
		Store:     participants,
		Meeting:   state,
		Chat:      history,
		Script:    aiSvc.Script(),
		Dialogues: agent.AIDialogues(aiSvc),
		Connector: livekit.NewConnector(cfg.Realtime.URL, cfg.Realtime.APIKey, cfg.Realtime.APISecret, aiSvc.Script().AgentName, logger),
	}
	if speechSvc != nil {
		deps.Synth = speechSvc
	}

	return agent.NewWorker(deps, agent.Config{
		RoomName: cfg.Meeting.RoomName,
		Options: agent.Options{
			AgentIdentity: cfg.Meeting.AgentIdentity,
			InfoPath:      cfg.Meeting.InfoPath,
			WarmupDelay:   cfg.Meeting.WarmupDelay,
			GreetingDelay: cfg.Meeting.GreetingDelay,
		},
		TranscriptDir:    cfg.Meeting.TranscriptDir,
		Schedule:         cfg.Meeting.Schedule,
		Duration:         scheduledDuration(cfg.Meeting),
		QueueConcurrency: cfg.Meeting.QueueConcurrency,
		RetryDelay:       cfg.Meeting.RejoinDelay,
	}, logger), nil
}

// scheduledDuration bounds scheduled meetings only; an immediate meeting
// runs until shutdown or until the room closes.
func scheduledDuration(m config.MeetingConfig) time.Duration {
	if m.Schedule == "" {
		return 0
	}
	return m.Duration
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
