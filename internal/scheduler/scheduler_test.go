package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("0 9 * * 1-5"))
	assert.NoError(t, Validate("*/5 * * * * *"))
	assert.NoError(t, Validate("@daily"))
	assert.Error(t, Validate("every morning"))
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	_, err := New("not a schedule", func() {}, discard())
	assert.Error(t, err)
}

func TestSchedulerFires(t *testing.T) {
	var fired atomic.Int32
	s, err := New("* * * * * *", func() { fired.Add(1) }, discard())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return fired.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
