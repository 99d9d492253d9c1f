package participant

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound 表示数据库中没有该参与者。
	ErrNotFound = errors.New("participant not found")
	// ErrUnavailable 表示参与者存储未连接。
	ErrUnavailable = errors.New("participant store unavailable")
)

// Record 是参与者在存储中的持久化形态。
type Record struct {
	Name        string       `json:"name" bson:"name"`
	Project     string       `json:"project" bson:"project"`
	Role        string       `json:"role" bson:"role"`
	LastSession time.Time    `json:"lastSession" bson:"lastSession"`
	Logs        []SessionLog `json:"logs" bson:"logs"`
}

// SessionLog captures the answers given in one stand-up. Appended, never edited.
type SessionLog struct {
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	YesterdayWork string    `json:"yesterdayWork" bson:"yesterdayWork"`
	TodayPlan     string    `json:"todayPlan" bson:"todayPlan"`
	Blockers      []string  `json:"blockers" bson:"blockers"`
	SprintStatus  string    `json:"sprintStatus" bson:"sprintStatus"`
}

// LastLog returns the most recent log entry.
func (r Record) LastLog() (SessionLog, bool) {
	if len(r.Logs) == 0 {
		return SessionLog{}, false
	}
	return r.Logs[len(r.Logs)-1], true
}

// Summary is the listing projection used by diagnostics and the CLI.
type Summary struct {
	Name    string `json:"name" bson:"name"`
	Project string `json:"project" bson:"project"`
}

// Draft 会议进行中为单个参与者累积的回答，会议结束时写入存储。
type Draft struct {
	Project       string
	Role          string
	YesterdayWork string
	TodayPlan     string
	Blockers      []string
	SprintStatus  string
}

// Field names accepted by Draft.Apply.
const (
	FieldYesterdayWork = "yesterdayWork"
	FieldTodayPlan     = "todayPlan"
	FieldBlockers      = "blockers"
	FieldSprintStatus  = "sprintStatus"
)

// Apply records one answer. Blockers accumulate, the other fields overwrite.
// Unknown kinds are ignored and reported as false.
func (d *Draft) Apply(kind, content string) bool {
	switch kind {
	case FieldYesterdayWork:
		d.YesterdayWork = content
	case FieldTodayPlan:
		d.TodayPlan = content
	case FieldBlockers:
		d.Blockers = append(d.Blockers, content)
	case FieldSprintStatus:
		d.SprintStatus = content
	default:
		return false
	}
	return true
}

// Log builds the SessionLog appended on save.
func (d Draft) Log(at time.Time) SessionLog {
	blockers := append([]string{}, d.Blockers...)
	return SessionLog{
		Timestamp:     at,
		YesterdayWork: d.YesterdayWork,
		TodayPlan:     d.TodayPlan,
		Blockers:      blockers,
		SprintStatus:  d.SprintStatus,
	}
}

// SameName reports whether two display names refer to the same participant.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
