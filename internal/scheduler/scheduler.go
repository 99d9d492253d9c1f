// Package scheduler fires the daily stand-up on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Handler is invoked each time the schedule fires.
type Handler func()

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether spec is a usable schedule.
func Validate(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler wraps a cron ticker with a single entry.
type Scheduler struct {
	spec    string
	handler Handler
	cron    *cron.Cron
	logger  *slog.Logger
}

// New creates a scheduler for spec. Start must be called to begin firing.
func New(spec string, handler Handler, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		spec:    spec,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
		logger:  logger.With("component", "scheduler"),
	}

	if _, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("schedule fired", "schedule", spec)
		s.handler()
	}); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("stand-up scheduled", "schedule", s.spec)
}

// Stop stops the ticker and waits for a running handler up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}
