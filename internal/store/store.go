// Package store opens the participant store selected by DB_URI.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/zhouzirui/standup/backend/internal/config"
	"github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/internal/store/mongo"
	"github.com/zhouzirui/standup/backend/internal/store/postgres"
)

// ErrNoURI is reported when DB_URI is empty.
var ErrNoURI = errors.New("DB_URI not configured")

// Open connects to the configured backend. It never fails: on any error the
// reason is logged and a disconnected store is returned.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) participant.Store {
	store, err := connect(ctx, cfg)
	if err != nil {
		logger.Warn("participant store unavailable, continuing without history", "err", err)
		return participant.DisabledStore{Reason: err}
	}

	logger.Info("participant store connected", "backend", backendName(cfg.URI))
	return store
}

func connect(ctx context.Context, cfg config.StoreConfig) (participant.Store, error) {
	if cfg.URI == "" {
		return nil, ErrNoURI
	}

	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("parse DB_URI: %w", err)
	}

	switch u.Scheme {
	case "mongodb", "mongodb+srv":
		return mongo.Open(ctx, cfg.URI, cfg.Database, cfg.Collection, cfg.Timeout)
	case "postgres", "postgresql":
		return postgres.Open(ctx, cfg.URI, cfg.Timeout)
	case "memory":
		return participant.NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unsupported DB_URI scheme %q", u.Scheme)
	}
}

func backendName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "unknown"
	}
	return u.Scheme
}
