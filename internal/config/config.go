package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Upstream  UpstreamConfig
	Retry     RetryConfig
	Pipeline  PipelineConfig
	Session   SessionConfig
	Telemetry TelemetryConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	upstream, err := loadUpstreamConfig()
	if err != nil {
		return nil, err
	}

	retry, err := loadRetryConfig()
	if err != nil {
		return nil, err
	}

	pipeline, err := loadPipelineConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Log:       LogConfig{Mode: getEnvOrDefault("LOG_MODE", "development")},
		Upstream:  upstream,
		Retry:     retry,
		Pipeline:  pipeline,
		Session:   session,
		Telemetry: loadTelemetryConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// LogConfig selects the zap encoder preset.
type LogConfig struct {
	Mode string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var origins []string
	for _, origin := range strings.Split(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

const (
	BackendChatCompletions = "openai"
	BackendArk             = "ark"
)

// UpstreamConfig 描述上游分类模型的配置。
type UpstreamConfig struct {
	Backend        string
	URL            string
	APIKey         string
	Model          string
	Temperature    float64
	MaxTokens      int
	AttemptTimeout time.Duration
	Ark            ArkConfig
}

// ArkConfig 描述 Ark 大模型相关配置。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c UpstreamConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Ark.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	temperature := float32(c.Temperature)
	var maxTokens *int
	if c.MaxTokens > 0 {
		val := c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.Ark.BaseURL,
		Region:      c.Ark.Region,
		APIKey:      c.Ark.APIKey,
		AccessKey:   c.Ark.AccessKey,
		SecretKey:   c.Ark.SecretKey,
		Model:       c.Ark.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadUpstreamConfig() (UpstreamConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("UPSTREAM_BACKEND", BackendChatCompletions))
	if backend != BackendChatCompletions && backend != BackendArk {
		return UpstreamConfig{}, fmt.Errorf("invalid UPSTREAM_BACKEND value %q", backend)
	}

	temperature := 0.2
	if override, err := parseOptionalFloatEnv("UPSTREAM_TEMPERATURE"); err != nil {
		return UpstreamConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	maxTokens := 200
	if override, err := parseOptionalIntEnv("UPSTREAM_MAX_TOKENS"); err != nil {
		return UpstreamConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}

	attemptTimeout, err := parseDurationEnv("UPSTREAM_ATTEMPT_TIMEOUT", 15*time.Second)
	if err != nil {
		return UpstreamConfig{}, err
	}

	apiKey := strings.TrimSpace(os.Getenv("UPSTREAM_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}

	return UpstreamConfig{
		Backend:        backend,
		URL:            getEnvOrDefault("UPSTREAM_URL", "https://openrouter.ai/api/v1/chat/completions"),
		APIKey:         apiKey,
		Model:          getEnvOrDefault("UPSTREAM_MODEL", "openai/gpt-3.5-turbo"),
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		AttemptTimeout: attemptTimeout,
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
	}, nil
}

// RetryConfig 描述上游调用的重试策略。
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Jitter            float64
	RetryClientErrors bool
}

func loadRetryConfig() (RetryConfig, error) {
	maxRetries := 3
	if override, err := parseOptionalIntEnv("UPSTREAM_MAX_RETRIES"); err != nil {
		return RetryConfig{}, err
	} else if override != nil {
		maxRetries = *override
		if maxRetries < 0 {
			maxRetries = 0
		}
	}

	baseDelay, err := parseDurationEnv("UPSTREAM_BASE_DELAY", 500*time.Millisecond)
	if err != nil {
		return RetryConfig{}, err
	}

	maxDelay, err := parseDurationEnv("UPSTREAM_MAX_DELAY", 30*time.Second)
	if err != nil {
		return RetryConfig{}, err
	}

	jitter := 0.0
	if override, err := parseOptionalFloatEnv("UPSTREAM_JITTER"); err != nil {
		return RetryConfig{}, err
	} else if override != nil {
		if *override < 0 || *override > 1 {
			return RetryConfig{}, fmt.Errorf("invalid UPSTREAM_JITTER value %v: must be within [0,1]", *override)
		}
		jitter = *override
	}

	retryClientErrors, err := parseBoolEnv("UPSTREAM_RETRY_CLIENT_ERRORS", true)
	if err != nil {
		return RetryConfig{}, err
	}

	return RetryConfig{
		MaxRetries:        maxRetries,
		BaseDelay:         baseDelay,
		MaxDelay:          maxDelay,
		Jitter:            jitter,
		RetryClientErrors: retryClientErrors,
	}, nil
}

// PipelineConfig 控制消息处理流水线的行为。
type PipelineConfig struct {
	IncludeSuggestion     bool
	SurfaceUpstreamErrors bool
	EscalationMessage     string
}

func loadPipelineConfig() (PipelineConfig, error) {
	includeSuggestion, err := parseBoolEnv("PIPELINE_INCLUDE_SUGGESTION", true)
	if err != nil {
		return PipelineConfig{}, err
	}

	surface, err := parseBoolEnv("PIPELINE_SURFACE_UPSTREAM_ERRORS", false)
	if err != nil {
		return PipelineConfig{}, err
	}

	return PipelineConfig{
		IncludeSuggestion:     includeSuggestion,
		SurfaceUpstreamErrors: surface,
		EscalationMessage:     strings.TrimSpace(os.Getenv("RISK_ESCALATION_MESSAGE")),
	}, nil
}

// SessionConfig 限制内存会话表的大小与空闲时长。
type SessionConfig struct {
	TTL         time.Duration
	MaxSessions int
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}

	maxSessions := 10000
	if override, err := parseOptionalIntEnv("SESSION_MAX"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_MAX value %d: must be positive", *override)
		}
		maxSessions = *override
	}

	return SessionConfig{TTL: ttl, MaxSessions: maxSessions}, nil
}

// TelemetryConfig 描述匿名事件的落地方式。
type TelemetryConfig struct {
	Sink          string
	RedisAddr     string
	RedisStream   string
	SQLitePath    string
	AnonymizeSalt string
}

func loadTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Sink:          strings.ToLower(getEnvOrDefault("TELEMETRY_SINK", "noop")),
		RedisAddr:     strings.TrimSpace(os.Getenv("TELEMETRY_REDIS_ADDR")),
		RedisStream:   getEnvOrDefault("TELEMETRY_REDIS_STREAM", "mindcare:events"),
		SQLitePath:    getEnvOrDefault("TELEMETRY_SQLITE_PATH", "data/telemetry.db"),
		AnonymizeSalt: getEnvOrDefault("ANONYMIZE_SALT", "default_salt_change_me"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseDurationEnv 接受 "1.5s" 这类 Go duration，也接受纯数字（毫秒）。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if ms, err := strconv.Atoi(raw); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}
