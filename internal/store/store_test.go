package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/standup/backend/internal/config"
	"github.com/zhouzirui/standup/backend/internal/model/participant"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenWithoutURIIsDisconnected(t *testing.T) {
	s := Open(context.Background(), config.StoreConfig{}, discard())

	assert.False(t, s.Connected())
	disabled, ok := s.(participant.DisabledStore)
	require.True(t, ok)
	assert.ErrorIs(t, disabled.Reason, ErrNoURI)
}

func TestOpenUnsupportedScheme(t *testing.T) {
	s := Open(context.Background(), config.StoreConfig{URI: "redis://localhost"}, discard())
	assert.False(t, s.Connected())
}

func TestOpenMemory(t *testing.T) {
	s := Open(context.Background(), config.StoreConfig{URI: "memory://"}, discard())
	require.True(t, s.Connected())

	ctx := context.Background()
	require.NoError(t, s.Update(ctx, "Priya", participant.Draft{Project: "Atlas"}))
	rec, err := s.Get(ctx, "priya")
	require.NoError(t, err)
	assert.Equal(t, "Atlas", rec.Project)
}
