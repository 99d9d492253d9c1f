// Package livekit implements realtime.Room on a LiveKit server.
package livekit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/zhouzirui/standup/backend/internal/realtime"
)

// maxChunk keeps each reliable data packet under the server's size limit.
const maxChunk = 14 * 1024

// Connector joins LiveKit rooms with an API key pair.
type Connector struct {
	url       string
	apiKey    string
	apiSecret string
	agentName string
	logger    *slog.Logger
}

// NewConnector 创建房间连接器。
func NewConnector(url, apiKey, apiSecret, agentName string, logger *slog.Logger) *Connector {
	return &Connector{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		agentName: agentName,
		logger:    logger.With("component", "livekit"),
	}
}

type room struct {
	name   string
	client *lksdk.Room
	events chan realtime.Event
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// Connect joins roomName as identity. Participants already present are
// reported as connected events.
func (c *Connector) Connect(ctx context.Context, roomName, identity string) (realtime.Room, error) {
	r := &room{
		name:   roomName,
		events: make(chan realtime.Event, 64),
		done:   make(chan struct{}),
		logger: c.logger.With("room", roomName),
	}

	callback := &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				user, ok := data.(*lksdk.UserDataPacket)
				if !ok || len(user.Payload) == 0 {
					return
				}
				r.emit(realtime.Event{
					Kind:     realtime.DataReceived,
					Identity: params.SenderIdentity,
					Topic:    user.Topic,
					Payload:  user.Payload,
				})
			},
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			r.emit(realtime.Event{Kind: realtime.ParticipantConnected, Identity: rp.Identity()})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			r.emit(realtime.Event{Kind: realtime.ParticipantDisconnected, Identity: rp.Identity()})
		},
		OnReconnecting: func() {
			r.logger.Warn("reconnecting to room")
		},
		OnReconnected: func() {
			r.logger.Info("reconnected to room")
		},
		OnDisconnected: func() {
			r.emit(realtime.Event{Kind: realtime.Disconnected})
		},
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := lksdk.ConnectToRoom(c.url, lksdk.ConnectInfo{
		APIKey:              c.apiKey,
		APISecret:           c.apiSecret,
		RoomName:            roomName,
		ParticipantIdentity: identity,
		ParticipantName:     c.agentName,
		ParticipantKind:     lksdk.ParticipantAgent,
	}, callback, lksdk.WithAutoSubscribe(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to room %s: %w", roomName, err)
	}
	r.client = client

	for _, rp := range client.GetRemoteParticipants() {
		r.emit(realtime.Event{Kind: realtime.ParticipantConnected, Identity: rp.Identity()})
	}

	r.logger.Info("connected to room", "identity", identity)
	return r, nil
}

func (r *room) Name() string { return r.name }

func (r *room) Events() <-chan realtime.Event { return r.events }

func (r *room) emit(ev realtime.Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

type transcriptPayload struct {
	Text        string `json:"text"`
	AudioFormat string `json:"audioFormat,omitempty"`
	AudioChunks int    `json:"audioChunks,omitempty"`
}

// Publish sends the text on the transcript topic followed by the audio split
// into reliable chunks.
func (r *room) Publish(ctx context.Context, u realtime.Utterance) error {
	chunks := splitChunks(u.Audio, maxChunk)

	payload, err := json.Marshal(transcriptPayload{
		Text:        u.Text,
		AudioFormat: u.AudioFormat,
		AudioChunks: len(chunks),
	})
	if err != nil {
		return fmt.Errorf("encode transcript payload: %w", err)
	}

	if err := r.client.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishReliable(true),
		lksdk.WithDataPublishTopic(realtime.TopicTranscript),
	); err != nil {
		return fmt.Errorf("publish transcript: %w", err)
	}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.client.LocalParticipant.PublishDataPacket(
			lksdk.UserData(chunk),
			lksdk.WithDataPublishReliable(true),
			lksdk.WithDataPublishTopic(realtime.TopicAudio),
		); err != nil {
			return fmt.Errorf("publish audio: %w", err)
		}
	}
	return nil
}

func (r *room) Disconnect() {
	r.once.Do(func() {
		close(r.done)
		if r.client != nil {
			r.client.Disconnect()
		}
		r.logger.Info("disconnected from room")
	})
}

func splitChunks(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, len(data)/size+1)
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	return append(chunks, data)
}

// ParticipantInfo is a participant currently in a room.
type ParticipantInfo struct {
	Identity string
	Name     string
	JoinedAt int64
}

// ListParticipants asks the room service who is in roomName.
func ListParticipants(ctx context.Context, host, apiKey, apiSecret, roomName string) ([]ParticipantInfo, error) {
	client := lksdk.NewRoomServiceClient(host, apiKey, apiSecret)

	resp, err := client.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: roomName})
	if err != nil {
		return nil, fmt.Errorf("list participants in %s: %w", roomName, err)
	}

	out := make([]ParticipantInfo, 0, len(resp.Participants))
	for _, p := range resp.Participants {
		out = append(out, ParticipantInfo{Identity: p.Identity, Name: p.Name, JoinedAt: p.JoinedAt})
	}
	return out, nil
}
