package speech

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/standup/backend/internal/model/chat"
	"github.com/zhouzirui/standup/backend/internal/service/agent"
	"github.com/zhouzirui/standup/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// feedConn serialises writes; gorilla connections allow one writer.
type feedConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *feedConn) send(msg outgoingMessage) error {
	msg.Timestamp = time.Now().Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *feedConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleFeed streams the meeting conversation to a participant and accepts
// typed turns from them.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "roomName")

	grant, ok := h.authorize(w, r, room)
	if !ok {
		return
	}

	sess, err := h.sessions(room)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "no meeting running in room")
		return
	}

	updates, unsubscribe, err := h.chatSvc.Subscribe(sess.ID())
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "no meeting running in room")
		return
	}
	defer unsubscribe()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "room", room, "err", err)
		return
	}
	defer ws.Close()

	conn := &feedConn{conn: ws}
	speaker := speakerName(grant)
	logger := h.logger.With("room", room, "speaker", speaker)
	logger.Info("feed connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.send(outgoingMessage{Type: "connected", SessionID: sess.ID(), Data: map[string]string{"room": room}})

	go h.writeLoop(ctx, cancel, conn, sess.ID(), updates)

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("feed read error", "err", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.Type != "text" {
			_ = conn.send(outgoingMessage{Type: "error", Data: map[string]string{"message": "unsupported message type"}})
			continue
		}

		if _, err := sess.HandleTurn(ctx, speaker, msg.Text); err != nil && !errors.Is(err, agent.ErrEmptyTurn) {
			logger.Error("feed turn failed", "err", err)
			_ = conn.send(outgoingMessage{Type: "error", Data: map[string]string{"message": "failed to process turn"}})
		}
	}
}

// writeLoop forwards history updates and keeps the connection alive. It
// closes the socket when the meeting ends.
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *feedConn, sessionID string, updates <-chan chat.Message) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				_ = conn.send(outgoingMessage{Type: "closed", SessionID: sessionID})
				cancel()
				conn.conn.Close()
				return
			}
			if err := conn.send(outgoingMessage{Type: "message", SessionID: sessionID, Data: msg}); err != nil {
				cancel()
				conn.conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				cancel()
				conn.conn.Close()
				return
			}
		}
	}
}
