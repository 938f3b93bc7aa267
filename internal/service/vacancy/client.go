package vacancy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

// Client talks to the external vacancy service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for baseURL. A zero timeout means 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type vacancyResponse struct {
	Profession   string   `json:"profession"`
	Position     string   `json:"position"`
	Requirements string   `json:"requirements"`
	Questions    string   `json:"questions"`
	Tasks        []string `json:"tasks"`
	TaskIdeas    []string `json:"task_ideas"`
	Duration     int      `json:"duration"`
}

// Get fetches one vacancy. Duration is reported by the service in minutes.
func (c *Client) Get(ctx context.Context, id string) (interview.Vacancy, error) {
	endpoint := fmt.Sprintf("%s/vacancies/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return interview.Vacancy{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[vacancy] get %s failed: %v", id, err)
		return interview.Vacancy{}, fmt.Errorf("get vacancy %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return interview.Vacancy{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		return interview.Vacancy{}, statusError("get vacancy "+id, resp)
	}

	var body vacancyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return interview.Vacancy{}, fmt.Errorf("decode vacancy %s: %w", id, err)
	}

	return interview.Vacancy{
		ID:           id,
		Profession:   body.Profession,
		Position:     body.Position,
		Requirements: body.Requirements,
		Questions:    body.Questions,
		Tasks:        body.Tasks,
		TaskIdeas:    body.TaskIdeas,
		Duration:     time.Duration(body.Duration) * time.Minute,
	}, nil
}

// SubmitResults posts the finished interview to the vacancy.
func (c *Client) SubmitResults(ctx context.Context, results Results) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode interview results: %w", err)
	}

	endpoint := fmt.Sprintf("%s/vacancies/%s/interview", c.baseURL, url.PathEscape(results.VacancyID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[vacancy] submit results for %s failed: %v", results.VacancyID, err)
		return fmt.Errorf("submit interview results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("submit interview results for "+results.VacancyID, resp)
	}
	log.Printf("[vacancy] submitted interview results vacancy=%s", results.VacancyID)
	return nil
}

// StatusError reports a non-success response from a collaborator.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	log.Printf("[vacancy] %s: status %d", op, resp.StatusCode)
	return &StatusError{Op: op, Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}
