package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Realtime RealtimeConfig
	Meeting  MeetingConfig
	AI       AIConfig
	Speech   SpeechConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。旧版变量名（MONGODB_URI、LIVEKIT_* 等）作为别名继续生效。
func Load() (*Config, error) {
	v := newViper()

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig(v)
	if err != nil {
		return nil, err
	}

	realtime, err := loadRealtimeConfig(v)
	if err != nil {
		return nil, err
	}

	meeting, err := loadMeetingConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Store:    store,
		Realtime: realtime,
		Meeting:  meeting,
		AI:       ai,
		Speech:   speech,
		Log:      LogConfig{Level: strings.ToLower(v.GetString("log_level"))},
	}, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	bind := func(key string, envs ...string) {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	bind("http_port", "HTTP_PORT", "FLASK_PORT", "PORT")
	bind("cors_origins", "CORS_ORIGINS")

	bind("db_uri", "DB_URI", "MONGODB_URI", "DATABASE_URL")
	bind("db_name", "DB_NAME")
	bind("db_collection", "DB_COLLECTION")
	bind("db_timeout", "DB_TIMEOUT")

	bind("service_url", "SERVICE_URL", "LIVEKIT_URL")
	bind("service_key", "SERVICE_KEY", "LIVEKIT_API_KEY")
	bind("service_secret", "SERVICE_SECRET", "LIVEKIT_API_SECRET")
	bind("token_ttl", "TOKEN_TTL")

	bind("room_name", "ROOM_NAME")
	bind("agent_identity", "AGENT_IDENTITY")
	bind("site_url", "SITE_URL", "NEXT_PUBLIC_SITE_URL")
	bind("meeting_info_path", "MEETING_INFO_PATH")
	bind("transcript_dir", "TRANSCRIPT_DIR")
	bind("standup_schedule", "STANDUP_SCHEDULE")
	bind("meeting_duration", "MEETING_DURATION")
	bind("warmup_delay", "WARMUP_DELAY")
	bind("greeting_delay", "GREETING_DELAY")
	bind("queue_concurrency", "QUEUE_CONCURRENCY")
	bind("rejoin_delay", "REJOIN_DELAY")

	bind("ark_api_key", "ARK_API_KEY")
	bind("ark_access_key", "ARK_ACCESS_KEY")
	bind("ark_secret_key", "ARK_SECRET_KEY")
	bind("ark_model", "ARK_MODEL", "Model")
	bind("ark_base_url", "ARK_BASE_URL")
	bind("ark_region", "ARK_REGION")
	bind("ark_temperature", "ARK_TEMPERATURE")
	bind("ark_top_p", "ARK_TOP_P")
	bind("ark_max_tokens", "ARK_MAX_TOKENS")
	bind("ark_max_steps", "ARK_MAX_STEPS")

	bind("openai_api_key", "OPENAI_API_KEY")
	bind("openai_base_url", "OPENAI_BASE_URL")
	bind("stt_model", "STT_MODEL")
	bind("stt_language", "STT_LANGUAGE")
	bind("tts_model", "TTS_MODEL")
	bind("tts_voice", "TTS_VOICE")
	bind("speech_timeout", "SPEECH_TIMEOUT")

	bind("log_level", "LOG_LEVEL")

	v.SetDefault("http_port", "5000")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("db_name", "standup_db")
	v.SetDefault("db_collection", "participants")
	v.SetDefault("db_timeout", "5s")
	v.SetDefault("token_ttl", "6h")
	v.SetDefault("room_name", "daily-standup-room")
	v.SetDefault("agent_identity", "neha-agent")
	v.SetDefault("site_url", "http://localhost:3000")
	v.SetDefault("meeting_info_path", "meeting_info.json")
	v.SetDefault("transcript_dir", ".")
	v.SetDefault("meeting_duration", "30m")
	v.SetDefault("warmup_delay", "3s")
	v.SetDefault("greeting_delay", "1s")
	v.SetDefault("queue_concurrency", "4")
	v.SetDefault("rejoin_delay", "5s")
	v.SetDefault("ark_base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ark_region", "cn-beijing")
	v.SetDefault("ark_max_steps", "8")
	v.SetDefault("stt_model", "whisper-1")
	v.SetDefault("stt_language", "en")
	v.SetDefault("tts_model", "tts-1")
	v.SetDefault("tts_voice", "nova")
	v.SetDefault("speech_timeout", "30s")
	v.SetDefault("log_level", "info")

	return v
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	var origins []string
	for _, origin := range strings.Split(v.GetString("cors_origins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	port := strings.TrimSpace(v.GetString("http_port"))
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5000" 或 "127.0.0.1:5000"。
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid HTTP_PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

// StoreConfig 描述参与者数据库配置，后端由 URI scheme 决定。
type StoreConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

func loadStoreConfig(v *viper.Viper) (StoreConfig, error) {
	timeout, err := parseDuration(v, "db_timeout")
	if err != nil {
		return StoreConfig{}, err
	}

	return StoreConfig{
		URI:        strings.TrimSpace(v.GetString("db_uri")),
		Database:   strings.TrimSpace(v.GetString("db_name")),
		Collection: strings.TrimSpace(v.GetString("db_collection")),
		Timeout:    timeout,
	}, nil
}

// RealtimeConfig 描述实时音视频房间服务的凭证。
type RealtimeConfig struct {
	URL       string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

// Enabled 表示代理能否连接房间。签发 token 只需要 key 与 secret。
func (c RealtimeConfig) Enabled() bool {
	return c.URL != "" && c.APIKey != "" && c.APISecret != ""
}

func loadRealtimeConfig(v *viper.Viper) (RealtimeConfig, error) {
	ttl, err := parseDuration(v, "token_ttl")
	if err != nil {
		return RealtimeConfig{}, err
	}

	return RealtimeConfig{
		URL:       strings.TrimSpace(v.GetString("service_url")),
		APIKey:    strings.TrimSpace(v.GetString("service_key")),
		APISecret: strings.TrimSpace(v.GetString("service_secret")),
		TokenTTL:  ttl,
	}, nil
}

// MeetingConfig 描述站会本身的参数。
type MeetingConfig struct {
	RoomName         string
	AgentIdentity    string
	SiteURL          string
	InfoPath         string
	TranscriptDir    string
	Schedule         string
	Duration         time.Duration
	WarmupDelay      time.Duration
	GreetingDelay    time.Duration
	RejoinDelay      time.Duration
	QueueConcurrency int64
}

func loadMeetingConfig(v *viper.Viper) (MeetingConfig, error) {
	duration, err := parseDuration(v, "meeting_duration")
	if err != nil {
		return MeetingConfig{}, err
	}
	warmup, err := parseDuration(v, "warmup_delay")
	if err != nil {
		return MeetingConfig{}, err
	}
	greeting, err := parseDuration(v, "greeting_delay")
	if err != nil {
		return MeetingConfig{}, err
	}
	rejoin, err := parseDuration(v, "rejoin_delay")
	if err != nil {
		return MeetingConfig{}, err
	}

	concurrency, err := parseOptionalInt(v, "queue_concurrency")
	if err != nil {
		return MeetingConfig{}, err
	}
	workers := int64(4)
	if concurrency != nil && *concurrency > 0 {
		workers = int64(*concurrency)
	}

	return MeetingConfig{
		RoomName:         strings.TrimSpace(v.GetString("room_name")),
		AgentIdentity:    strings.TrimSpace(v.GetString("agent_identity")),
		SiteURL:          strings.TrimRight(strings.TrimSpace(v.GetString("site_url")), "/"),
		InfoPath:         strings.TrimSpace(v.GetString("meeting_info_path")),
		TranscriptDir:    strings.TrimSpace(v.GetString("transcript_dir")),
		Schedule:         strings.TrimSpace(v.GetString("standup_schedule")),
		Duration:         duration,
		WarmupDelay:      warmup,
		GreetingDelay:    greeting,
		RejoinDelay:      rejoin,
		QueueConcurrency: workers,
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	MaxSteps    int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个支持工具调用的模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := parseOptionalFloat(v, "ark_temperature")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloat(v, "ark_top_p")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, "ark_max_tokens")
	if err != nil {
		return AIConfig{}, err
	}

	steps := 8
	if override, err := parseOptionalInt(v, "ark_max_steps"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		steps = *override
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(v.GetString("ark_api_key")),
		AccessKey:   strings.TrimSpace(v.GetString("ark_access_key")),
		SecretKey:   strings.TrimSpace(v.GetString("ark_secret_key")),
		Model:       strings.TrimSpace(v.GetString("ark_model")),
		BaseURL:     strings.TrimSpace(v.GetString("ark_base_url")),
		Region:      strings.TrimSpace(v.GetString("ark_region")),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		MaxSteps:    steps,
	}, nil
}

// SpeechConfig 描述语音识别与合成服务配置
type SpeechConfig struct {
	APIKey   string
	BaseURL  string
	STTModel string
	Language string
	TTSModel string
	Voice    string
	Timeout  time.Duration
}

// Enabled 表示是否配置了语音服务密钥。
func (c SpeechConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadSpeechConfig(v *viper.Viper) (SpeechConfig, error) {
	timeout, err := parseDuration(v, "speech_timeout")
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		APIKey:   strings.TrimSpace(v.GetString("openai_api_key")),
		BaseURL:  strings.TrimSpace(v.GetString("openai_base_url")),
		STTModel: strings.TrimSpace(v.GetString("stt_model")),
		Language: strings.TrimSpace(v.GetString("stt_language")),
		TTSModel: strings.TrimSpace(v.GetString("tts_model")),
		Voice:    strings.TrimSpace(v.GetString("tts_voice")),
		Timeout:  timeout,
	}, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", strings.ToUpper(key), raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", strings.ToUpper(key), raw)
	}
	return val, nil
}

func parseOptionalFloat(v *viper.Viper, key string) (*float64, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", strings.ToUpper(key), value, err)
	}
	return &val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", strings.ToUpper(key), value, err)
	}
	return &val, nil
}
