// Package agent runs the stand-up facilitator inside a meeting room.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/internal/service/ai"
	"github.com/zhouzirui/standup/backend/internal/service/meeting"
)

const (
	ackRecorded = "Got it, I've recorded that information."
	ackFallback = "Noted."
)

// Speaker says text into the meeting.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Options tune the agent's timing and identity.
type Options struct {
	AgentIdentity string
	InfoPath      string
	WarmupDelay   time.Duration
	GreetingDelay time.Duration
}

// ExitReport lists the outcome of the end-of-meeting flush.
type ExitReport struct {
	Saved   []string
	Failed  []string
	Skipped bool
}

type draftEntry struct {
	name  string
	draft participant.Draft
}

// ConversationAgent keeps per-meeting memory of who is in the room and what
// they reported, and writes it back to the store when the meeting ends.
type ConversationAgent struct {
	store   participant.Store
	meeting *meeting.State
	script  ai.Script
	speaker Speaker
	opts    Options
	logger  *slog.Logger

	mu     sync.Mutex
	known  map[string]participant.Record
	drafts map[string]*draftEntry
	order  []string
}

// NewConversationAgent 创建会议代理。
func NewConversationAgent(store participant.Store, state *meeting.State, script ai.Script, speaker Speaker, opts Options, logger *slog.Logger) *ConversationAgent {
	return &ConversationAgent{
		store:   store,
		meeting: state,
		script:  script,
		speaker: speaker,
		opts:    opts,
		logger:  logger.With("component", "agent", "room", state.RoomName()),
		known:   make(map[string]participant.Record),
		drafts:  make(map[string]*draftEntry),
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// LookupParticipant fetches the participant's history and caches it for the
// rest of the meeting. It always returns a message for the model.
func (a *ConversationAgent) LookupParticipant(ctx context.Context, name string) string {
	a.logger.Info("looking up participant", "name", name)

	if !a.store.Connected() {
		return fmt.Sprintf("Database unavailable. Proceeding with %s.", name)
	}

	rec, err := a.store.Get(ctx, name)
	switch {
	case errors.Is(err, participant.ErrNotFound):
		return fmt.Sprintf("New team member %s. No previous history found.", name)
	case errors.Is(err, participant.ErrUnavailable):
		return fmt.Sprintf("Database unavailable. Proceeding with %s.", name)
	case err != nil:
		a.logger.Error("participant lookup failed", "name", name, "err", err)
		return fmt.Sprintf("Error looking up %s. Proceeding with stand-up.", name)
	}

	a.mu.Lock()
	a.known[key(name)] = rec
	a.mu.Unlock()

	return lookupSummary(name, rec)
}

func lookupSummary(name string, rec participant.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %s in database. ", name)
	if rec.Project != "" {
		fmt.Fprintf(&b, "Project: %s. ", rec.Project)
	}
	if rec.Role != "" {
		fmt.Fprintf(&b, "Role: %s. ", rec.Role)
	}
	if last, ok := rec.LastLog(); ok {
		if last.TodayPlan != "" {
			fmt.Fprintf(&b, "Last planned work: %s. ", last.TodayPlan)
		}
		if len(last.Blockers) > 0 {
			fmt.Fprintf(&b, "Previous blockers: %s. ", strings.Join(last.Blockers, ", "))
		}
	}
	b.WriteString("Ready for personalized stand-up.")
	return b.String()
}

// SaveSessionData records one answer in the participant's draft.
func (a *ConversationAgent) SaveSessionData(_ context.Context, name, kind, content string) string {
	k := key(name)
	if k == "" {
		a.logger.Warn("save without participant name", "kind", kind)
		return ackFallback
	}

	a.mu.Lock()
	entry, ok := a.drafts[k]
	if !ok {
		entry = &draftEntry{name: strings.TrimSpace(name)}
		if rec, found := a.known[k]; found {
			entry.draft.Project = rec.Project
			entry.draft.Role = rec.Role
		}
		a.drafts[k] = entry
		a.order = append(a.order, k)
	}
	applied := entry.draft.Apply(kind, content)
	a.mu.Unlock()

	if !applied {
		a.logger.Warn("ignoring unknown answer kind", "name", name, "kind", kind)
	} else {
		a.logger.Info("recorded answer", "name", name, "kind", kind)
	}
	return ackRecorded
}

// Draft returns a copy of the participant's current draft.
func (a *ConversationAgent) Draft(name string) (participant.Draft, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.drafts[key(name)]
	if !ok {
		return participant.Draft{}, false
	}
	d := entry.draft
	d.Blockers = append([]string(nil), d.Blockers...)
	return d, true
}

// OnEnter activates the meeting and says the opening message.
func (a *ConversationAgent) OnEnter(ctx context.Context) {
	if !sleep(ctx, a.opts.WarmupDelay) {
		return
	}

	link := a.meeting.GenerateLink()
	a.logger.Info("meeting active", "link", link)

	if a.opts.InfoPath != "" {
		if err := a.meeting.Persist(a.opts.InfoPath); err != nil {
			a.logger.Error("failed to persist meeting info", "path", a.opts.InfoPath, "err", err)
		}
	}

	if a.store.Connected() {
		list, err := a.store.List(ctx)
		if err != nil {
			a.logger.Warn("participant store probe failed", "err", err)
		} else {
			a.logger.Info("participant store probe", "participants", len(list))
			for _, p := range list {
				a.logger.Debug("known participant", "name", p.Name, "project", p.Project)
			}
		}
	}

	if err := a.speaker.Say(ctx, a.script.OpeningMessage()); err != nil {
		a.logger.Error("failed to say opening message", "err", err)
		return
	}
	a.logger.Info("ready for stand-up")
}

// OnParticipantConnected greets a participant using their stored history.
func (a *ConversationAgent) OnParticipantConnected(ctx context.Context, identity string) {
	if identity == "" || identity == a.opts.AgentIdentity {
		return
	}
	a.logger.Info("participant joined", "identity", identity)

	a.LookupParticipant(ctx, identity)

	a.mu.Lock()
	rec, known := a.known[key(identity)]
	a.mu.Unlock()

	var welcome string
	if known {
		project := "your current project"
		if rec.Project != "" {
			project = "the " + rec.Project + " project"
		}
		welcome = fmt.Sprintf("Welcome back %s! I see you're working as a %s on %s. "+
			"Let me check your recent progress and we'll start your stand-up.",
			identity, orDefault(rec.Role, "team member"), project)
	} else {
		welcome = fmt.Sprintf("Welcome %s! I don't see you in our team database yet, "+
			"but let's proceed with the stand-up. %s", identity, ai.StandupQuestions[0])
	}

	if !sleep(ctx, a.opts.GreetingDelay) {
		return
	}
	if err := a.speaker.Say(ctx, welcome); err != nil {
		a.logger.Error("failed to greet participant", "identity", identity, "err", err)
	}
}

// OnParticipantDisconnected only logs; drafts are kept until exit.
func (a *ConversationAgent) OnParticipantDisconnected(_ context.Context, identity string) {
	a.logger.Info("participant left", "identity", identity)
}

// OnExit marks the meeting inactive and writes every draft to the store.
// A failed write is logged and does not stop the others.
func (a *ConversationAgent) OnExit(ctx context.Context) ExitReport {
	a.meeting.Deactivate()

	a.mu.Lock()
	entries := make([]draftEntry, 0, len(a.order))
	for _, k := range a.order {
		entries = append(entries, *a.drafts[k])
	}
	a.mu.Unlock()

	var report ExitReport
	if !a.store.Connected() {
		a.logger.Warn("participant store unavailable, session data not saved", "drafts", len(entries))
		report.Skipped = true
		return report
	}

	for _, entry := range entries {
		if err := a.store.Update(ctx, entry.name, entry.draft); err != nil {
			a.logger.Warn("failed to save session data", "name", entry.name, "err", err)
			report.Failed = append(report.Failed, entry.name)
			continue
		}
		a.logger.Info("saved session data", "name", entry.name)
		report.Saved = append(report.Saved, entry.name)
	}
	return report
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// sleep waits d or until ctx is done. It reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
