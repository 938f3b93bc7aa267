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

	"github.com/zhouzirui/interview-room/backend/internal/service/ai/provider"
)

// Supported LLM providers.
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config aggregates every service setting.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Vacancy   VacancyConfig
	CodeRun   CodeRunConfig
	Interview InterviewConfig
	Telemetry TelemetryConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	vacancy, err := loadVacancyConfig()
	if err != nil {
		return nil, err
	}

	codeRun, err := loadCodeRunConfig()
	if err != nil {
		return nil, err
	}

	interview, err := loadInterviewConfig()
	if err != nil {
		return nil, err
	}

	stdoutTraces, err := parseBoolEnv("OTEL_STDOUT_TRACES", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Vacancy:   vacancy,
		CodeRun:   codeRun,
		Interview: interview,
		Telemetry: TelemetryConfig{StdoutTraces: stdoutTraces},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// loadServerConfig parses the listen address.
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as given.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the language model backend.
type AIConfig struct {
	Provider     string
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	HistoryLimit int
}

// Enabled reports whether enough credentials are present to build a model.
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.Provider == ProviderArk {
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
	return c.APIKey != ""
}

// NewChatModel builds the chat model for the configured provider.
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s credentials or model missing: set LLM_MODEL and LLM_API_KEY", c.Provider)
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

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	case ProviderOpenAI, ProviderGemini:
		pc := provider.Config{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
		}
		if c.Provider == ProviderGemini {
			return provider.NewGemini(ctx, pc)
		}
		return provider.NewOpenAI(pc)
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	providerName := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderOpenAI))
	switch providerName {
	case ProviderArk, ProviderOpenAI, ProviderGemini:
	default:
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", providerName)
	}

	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 0
	if override, err := parseOptionalIntEnv("LLM_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		historyLimit = *override
	}

	cfg := AIConfig{
		Provider:     providerName,
		Model:        strings.TrimSpace(os.Getenv("LLM_MODEL")),
		BaseURL:      strings.TrimSpace(os.Getenv("LLM_BASE_URL")),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		HistoryLimit: historyLimit,
	}

	switch providerName {
	case ProviderArk:
		cfg.APIKey = firstEnv("LLM_API_KEY", "ARK_API_KEY")
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
		if cfg.BaseURL == "" {
			cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		}
	case ProviderOpenAI:
		cfg.APIKey = firstEnv("LLM_API_KEY", "OPENAI_API_KEY")
		if cfg.BaseURL == "" {
			cfg.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
		}
	case ProviderGemini:
		cfg.APIKey = firstEnv("LLM_API_KEY", "GEMINI_API_KEY")
	}
	return cfg, nil
}

// VacancyConfig points at the vacancy service. An empty BaseURL selects the
// in-memory seeded store.
type VacancyConfig struct {
	BaseURL string
	Timeout time.Duration
}

func loadVacancyConfig() (VacancyConfig, error) {
	timeout, err := parseDurationSecondsEnv("VACANCY_SERVICE_TIMEOUT", 10*time.Second)
	if err != nil {
		return VacancyConfig{}, err
	}
	return VacancyConfig{
		BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("VACANCY_SERVICE_URL")), "/"),
		Timeout: timeout,
	}, nil
}

// CodeRunConfig points at the code execution service.
type CodeRunConfig struct {
	BaseURL       string
	APIKey        string
	RatePerSecond float64
	Burst         int
	Parallelism   int
	Timeout       time.Duration
}

// Enabled reports whether a code runner is configured.
func (c CodeRunConfig) Enabled() bool {
	return c.BaseURL != ""
}

func loadCodeRunConfig() (CodeRunConfig, error) {
	rps := 2.0
	if override, err := parseOptionalFloatEnv("CODE_RUNNER_RPS"); err != nil {
		return CodeRunConfig{}, err
	} else if override != nil && *override > 0 {
		rps = *override
	}

	burst := 4
	if override, err := parseOptionalIntEnv("CODE_RUNNER_BURST"); err != nil {
		return CodeRunConfig{}, err
	} else if override != nil && *override > 0 {
		burst = *override
	}

	parallelism := 4
	if override, err := parseOptionalIntEnv("CODE_RUNNER_PARALLELISM"); err != nil {
		return CodeRunConfig{}, err
	} else if override != nil && *override > 0 {
		parallelism = *override
	}

	timeout, err := parseDurationSecondsEnv("CODE_RUNNER_TIMEOUT", 30*time.Second)
	if err != nil {
		return CodeRunConfig{}, err
	}

	return CodeRunConfig{
		BaseURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("CODE_RUNNER_URL")), "/"),
		APIKey:        strings.TrimSpace(os.Getenv("CODE_RUNNER_API_KEY")),
		RatePerSecond: rps,
		Burst:         burst,
		Parallelism:   parallelism,
		Timeout:       timeout,
	}, nil
}

// InterviewConfig holds room defaults.
type InterviewConfig struct {
	// DefaultDuration applies to vacancies that do not specify one.
	DefaultDuration time.Duration
}

func loadInterviewConfig() (InterviewConfig, error) {
	minutes := 90
	if override, err := parseOptionalIntEnv("INTERVIEW_DEFAULT_MINUTES"); err != nil {
		return InterviewConfig{}, err
	} else if override != nil {
		if *override < 1 {
			minutes = 1
		} else {
			minutes = *override
		}
	}
	return InterviewConfig{DefaultDuration: time.Duration(minutes) * time.Minute}, nil
}

// TelemetryConfig toggles tracing exporters.
type TelemetryConfig struct {
	StdoutTraces bool
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
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

func parseDurationSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil || *seconds <= 0 {
		return defaultValue, nil
	}
	return time.Duration(*seconds) * time.Second, nil
}
