package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"VACANCY_SERVICE_URL", "CODE_RUNNER_URL", "INTERVIEW_DEFAULT_MINUTES", "OTEL_STDOUT_TRACES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("expected openai provider, got %q", cfg.AI.Provider)
	}
	if cfg.AI.Enabled() {
		t.Fatal("expected AI disabled without credentials")
	}
	if cfg.CodeRun.Enabled() {
		t.Fatal("expected code runner disabled without URL")
	}
	if cfg.Interview.DefaultDuration != 90*time.Minute {
		t.Fatalf("expected 90m default, got %s", cfg.Interview.DefaultDuration)
	}
	if cfg.CodeRun.Parallelism != 4 || cfg.CodeRun.Burst != 4 {
		t.Fatalf("unexpected code runner defaults: %+v", cfg.CodeRun)
	}
}

func TestLoadProviderKeyFallbacks(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("LLM_MODEL", "gemini-2.5-flash")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Provider != ProviderGemini || cfg.AI.APIKey != "g-key" {
		t.Fatalf("unexpected AI config: %+v", cfg.AI)
	}
	if !cfg.AI.Enabled() {
		t.Fatal("expected AI enabled")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"provider": {"LLM_PROVIDER", "claude-local"},
		"port":     {"PORT", "80 80"},
		"rps":      {"CODE_RUNNER_RPS", "fast"},
		"traces":   {"OTEL_STDOUT_TRACES", "sometimes"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", kv[0], kv[1])
			}
		})
	}
}

func TestServerAddrAcceptsHostPort(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected host:port kept, got %q", cfg.Addr)
	}
}

func TestInterviewDurationClamp(t *testing.T) {
	t.Setenv("INTERVIEW_DEFAULT_MINUTES", "0")
	cfg, err := loadInterviewConfig()
	if err != nil {
		t.Fatalf("loadInterviewConfig err: %v", err)
	}
	if cfg.DefaultDuration != time.Minute {
		t.Fatalf("expected clamp to 1m, got %s", cfg.DefaultDuration)
	}
}
