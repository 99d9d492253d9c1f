package meeting

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// Status 会议状态。
type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
)

// Info is a consistent snapshot of the meeting.
type Info struct {
	RoomName    string     `json:"roomName"`
	MeetingLink *string    `json:"meetingLink"`
	Status      Status     `json:"status"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	AgentActive bool       `json:"agentActive"`
}

// State owns the single meeting served by this process. The agent writes it,
// the HTTP handlers read it.
type State struct {
	mu        sync.RWMutex
	roomName  string
	siteURL   string
	link      string
	status    Status
	startTime time.Time
	now       func() time.Time
}

// NewState 创建一个未激活的会议状态。
func NewState(roomName, siteURL string) *State {
	return &State{
		roomName: roomName,
		siteURL:  siteURL,
		status:   StatusInactive,
		now:      time.Now,
	}
}

// RoomName is fixed for the life of the process.
func (s *State) RoomName() string { return s.roomName }

// GenerateLink builds the join link, marks the meeting active and records
// the start time.
func (s *State) GenerateLink() string {
	link := joinLink(s.siteURL, s.roomName)

	s.mu.Lock()
	s.link = link
	s.status = StatusActive
	s.startTime = s.now().UTC()
	s.mu.Unlock()

	return link
}

// joinLink appends the meeting path to base. A base without scheme and host,
// such as "localhost:3000", is joined as a plain string.
func joinLink(base, room string) string {
	query := url.Values{"room": {room}}.Encode()
	if u, err := url.Parse(base); err == nil && u.Scheme != "" && u.Host != "" {
		u = u.JoinPath("meeting")
		u.RawQuery = query
		return u.String()
	}
	return strings.TrimRight(base, "/") + "/meeting?" + query
}

// Deactivate marks the meeting inactive. The last link is kept.
func (s *State) Deactivate() {
	s.mu.Lock()
	s.status = StatusInactive
	s.mu.Unlock()
}

// Active reports whether a meeting is running.
func (s *State) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status == StatusActive
}

// Snapshot returns the current meeting info.
func (s *State) Snapshot() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		RoomName:    s.roomName,
		Status:      s.status,
		AgentActive: s.status == StatusActive,
	}
	if s.link != "" {
		link := s.link
		info.MeetingLink = &link
	}
	if !s.startTime.IsZero() {
		start := s.startTime
		info.StartTime = &start
	}
	return info
}

// Persist writes the snapshot to path as indented JSON, replacing any
// previous file.
func (s *State) Persist(path string) error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode meeting info: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write meeting info: %w", err)
	}
	return nil
}
