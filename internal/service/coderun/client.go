// Package coderun executes candidate code through an external runner and
// scores it against generated test suites.
package coderun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
	"github.com/zhouzirui/interview-room/backend/internal/observability"
)

// ErrUnsupportedLanguage is returned for code without a runnable language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Runner executes a program once with the given stdin.
type Runner interface {
	Run(ctx context.Context, language interview.Language, stdin, code string) (interview.RunResult, error)
}

// Options configures Client.
type Options struct {
	BaseURL       string
	APIKey        string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// Client calls the runner's /api/v1/run endpoint. Requests are rate limited
// across every room sharing the client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a runner client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, opts.Burst),
	}
}

type runFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type runRequest struct {
	Language string    `json:"language"`
	Stdin    string    `json:"stdin"`
	Files    []runFile `json:"files"`
}

type runResponse struct {
	Status        string  `json:"status"`
	Exception     *string `json:"exception"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	ExecutionTime *int    `json:"executionTime"`
	Stdin         *string `json:"stdin"`
}

// Run implements Runner.
func (c *Client) Run(ctx context.Context, language interview.Language, stdin, code string) (interview.RunResult, error) {
	ext := Extension(language)
	if ext == "" {
		return interview.RunResult{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return interview.RunResult{}, fmt.Errorf("wait for code runner: %w", err)
	}

	payload, err := json.Marshal(runRequest{
		Language: string(language),
		Stdin:    stdin,
		Files:    []runFile{{Name: "index" + ext, Content: code}},
	})
	if err != nil {
		return interview.RunResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/run", bytes.NewReader(payload))
	if err != nil {
		return interview.RunResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", req.URL.Host)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[coderun] run %s failed: %v", language, err)
		return interview.RunResult{}, fmt.Errorf("run code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[coderun] run %s: status %d", language, resp.StatusCode)
		return interview.RunResult{}, fmt.Errorf("run code: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var body runResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return interview.RunResult{}, fmt.Errorf("decode run result: %w", err)
	}

	result := interview.RunResult{
		Exception: deref(body.Exception),
		Stdin:     deref(body.Stdin),
		Stdout:    deref(body.Stdout),
		Stderr:    deref(body.Stderr),
	}
	if body.ExecutionTime != nil {
		result.ExecutionTime = *body.ExecutionTime
	}
	result.Status = normalizeStatus(body.Status, result.Exception)
	observability.CodeRun(result.Status)
	return result, nil
}

// normalizeStatus folds runner statuses into success, compile or runtime errors.
func normalizeStatus(status, exception string) string {
	lower := strings.ToLower(status + " " + exception)
	switch {
	case strings.TrimSpace(strings.ToLower(status)) == interview.RunStatusSuccess && exception == "":
		return interview.RunStatusSuccess
	case strings.Contains(lower, "compil"):
		return interview.RunStatusCompileError
	default:
		return interview.RunStatusRuntimeError
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Extension maps a language to the source file extension the runner expects.
func Extension(language interview.Language) string {
	switch language {
	case interview.LanguagePython:
		return ".py"
	case interview.LanguageJavaScript:
		return ".js"
	case interview.LanguageJava:
		return ".java"
	case interview.LanguageC:
		return ".c"
	case interview.LanguageCPP:
		return ".cpp"
	case interview.LanguageCSharp:
		return ".cs"
	case interview.LanguagePHP:
		return ".php"
	case interview.LanguageRuby:
		return ".rb"
	case interview.LanguageGo:
		return ".go"
	default:
		return ""
	}
}
