package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/zhouzirui/standup/backend/internal/config"
	"github.com/zhouzirui/standup/backend/internal/model/speech"
)

// ErrEmptyText 表示合成请求没有文本。
var ErrEmptyText = errors.New("text is required")

// Transcriber turns recorded audio into text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
}

// Synthesizer turns agent replies into audio.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Service 语音服务，基于 OpenAI 音频接口实现识别与合成。
type Service struct {
	client   openai.Client
	sttModel string
	ttsModel string
	voice    string
	language string
}

// NewService 创建语音服务实例
func NewService(cfg config.SpeechConfig) (*Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("OPENAI_API_KEY 未配置，无法启用语音服务")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(2),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Service{
		client:   openai.NewClient(opts...),
		sttModel: cfg.STTModel,
		ttsModel: cfg.TTSModel,
		voice:    cfg.Voice,
		language: cfg.Language,
	}, nil
}

// TranscribeAudio 语音转文字
func (s *Service) TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if req == nil || req.AudioData == nil {
		return nil, errors.New("audio data is required")
	}

	filename := req.Filename
	if filename == "" {
		filename = "audio." + defaultString(req.Format, "wav")
	}
	language := defaultString(req.Language, s.language)

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(req.AudioData, filename, contentType(filename)),
		Model: openai.AudioModel(s.sttModel),
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	started := time.Now()
	resp, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcribe audio: %w", err)
	}

	return &speech.ASRResponse{
		SessionID: req.SessionID,
		Text:      strings.TrimSpace(resp.Text),
		Language:  language,
		Duration:  time.Since(started).Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TranscribeBuffer 语音转文字（使用字节数组）
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audioData []byte, format string) (*speech.ASRResponse, error) {
	return s.TranscribeAudio(ctx, &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audioData),
		Format:    format,
	})
}

// SynthesizeSpeech 文字转语音
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	format := defaultString(req.Format, "mp3")
	started := time.Now()

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(s.ttsModel),
		Voice:          openai.AudioSpeechNewParamsVoice(defaultString(req.Voice, s.voice)),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(format),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}

	return &speech.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio,
		Duration:  time.Since(started).Milliseconds(),
		Format:    format,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
