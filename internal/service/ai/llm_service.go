package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/standup/backend/internal/model/chat"
)

const historyLimit = 20

// Toolset is implemented by the conversation agent. Both calls always return
// a message for the model and never fail.
type Toolset interface {
	LookupParticipant(ctx context.Context, name string) string
	SaveSessionData(ctx context.Context, name, kind, content string) string
}

// Service holds the prewarmed chat model and instruction script.
type Service struct {
	chatModel model.ToolCallingChatModel
	script    Script
	maxSteps  int
	logger    *slog.Logger
}

// NewService wraps an already built chat model.
func NewService(chatModel model.ToolCallingChatModel, script Script, maxSteps int, logger *slog.Logger) *Service {
	if maxSteps <= 0 {
		maxSteps = 8
	}
	return &Service{
		chatModel: chatModel,
		script:    script,
		maxSteps:  maxSteps,
		logger:    logger.With("component", "ai"),
	}
}

// Script returns the instruction script used for every dialogue.
func (s *Service) Script() Script {
	return s.script
}

// Dialogue is a tool-calling agent bound to one meeting's toolset.
type Dialogue struct {
	agent        *react.Agent
	instructions string
	logger       *slog.Logger
}

// NewDialogue registers the toolset and compiles a react agent.
func (s *Service) NewDialogue(ctx context.Context, tools Toolset) (*Dialogue, error) {
	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: s.chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: BuildTools(tools),
		},
		MaxStep: s.maxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dialogue agent: %w", err)
	}

	return &Dialogue{
		agent:        agent,
		instructions: s.script.Instructions(),
		logger:       s.logger,
	}, nil
}

// Respond runs one user turn and returns the spoken reply.
func (d *Dialogue) Respond(ctx context.Context, history []chat.Message, speaker, text string) (string, error) {
	messages := make([]*schema.Message, 0, historyLimit+2)
	messages = append(messages, schema.SystemMessage(d.instructions))
	messages = append(messages, buildHistoryMessages(history)...)
	messages = append(messages, schema.UserMessage(speakerLine(speaker, text)))

	reply, err := d.agent.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to run dialogue agent: %w", err)
	}

	d.logger.Debug("generated reply", "speaker", speaker, "length", len(reply.Content))
	return reply.Content, nil
}

type lookupInput struct {
	ParticipantName string `json:"participant_name"`
}

type saveInput struct {
	ParticipantName string `json:"participant_name"`
	DataType        string `json:"data_type"`
	Content         string `json:"content"`
}

// BuildTools exposes the toolset as eino tools.
func BuildTools(ts Toolset) []tool.BaseTool {
	lookup := utils.NewTool(&schema.ToolInfo{
		Name: ToolLookupParticipant,
		Desc: "Look up a participant in the database to get their history",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"participant_name": {Type: schema.String, Desc: "Display name of the participant", Required: true},
		}),
	}, func(ctx context.Context, in lookupInput) (string, error) {
		return ts.LookupParticipant(ctx, in.ParticipantName), nil
	})

	save := utils.NewTool(&schema.ToolInfo{
		Name: ToolSaveSessionData,
		Desc: "Save stand-up responses to database",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"participant_name": {Type: schema.String, Desc: "Display name of the participant", Required: true},
			"data_type": {
				Type:     schema.String,
				Desc:     "Which answer this is",
				Enum:     []string{"yesterdayWork", "todayPlan", "blockers", "sprintStatus"},
				Required: true,
			},
			"content": {Type: schema.String, Desc: "The participant's answer", Required: true},
		}),
	}, func(ctx context.Context, in saveInput) (string, error) {
		return ts.SaveSessionData(ctx, in.ParticipantName, in.DataType, in.Content), nil
	})

	return []tool.BaseTool{lookup, save}
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(speakerLine(msg.Participant, msg.Content)))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}

func speakerLine(speaker, text string) string {
	if speaker == "" {
		return text
	}
	return "[" + speaker + "]: " + text
}
