package vacancy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

func TestClientGetConvertsMinutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vacancies/v-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"profession":"SWE","position":"Go dev","requirements":"go","tasks":["a"],"task_ideas":["b","c"],"duration":30}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	v, err := client.Get(context.Background(), "v-1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if v.ID != "v-1" || v.Position != "Go dev" {
		t.Fatalf("unexpected vacancy: %+v", v)
	}
	if v.Duration != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", v.Duration)
	}
	if len(v.TaskIdeas) != 2 {
		t.Fatalf("expected 2 task ideas, got %d", len(v.TaskIdeas))
	}

	if _, err := client.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientGetReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).Get(context.Background(), "v-1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusBadGateway || statusErr.Body != "boom" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestClientSubmitResults(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/vacancies/v-1/interview" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	room := interview.Room{
		VacancyID:   "v-1",
		Interviewee: interview.Interviewee{Name: "Ann", Surname: "Lee", ResumeLink: "https://example.com/cv"},
		Tasks:       []interview.Task{{Type: interview.TaskTheory, Description: "explain GC"}},
		Solutions:   []interview.Solution{{Content: "print(1)", Type: interview.SolutionCode, Language: interview.LanguagePython}},
		History:     []interview.Message{{Role: interview.RoleCandidate, Type: interview.TypeAnswer, Content: "hi"}},
		Report:      []string{"Answers count: 1"},
	}
	if err := NewClient(srv.URL, time.Second).SubmitResults(context.Background(), ResultsFromRoom(room)); err != nil {
		t.Fatalf("SubmitResults err: %v", err)
	}

	if got["resume_link"] != "https://example.com/cv" {
		t.Fatalf("unexpected resume link: %v", got["resume_link"])
	}
	solutions := got["solutions"].([]any)
	if solutions[0] != "code [python]: print(1)" {
		t.Fatalf("unexpected solution line: %v", solutions[0])
	}
	history := got["chat_history"].([]any)
	if history[0] != "Candidate [answer]: hi" {
		t.Fatalf("unexpected history line: %v", history[0])
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(Seed())
	if len(store.List()) != 3 {
		t.Fatalf("expected 3 seeded vacancies, got %d", len(store.List()))
	}

	v, err := store.Get(context.Background(), "go-backend")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	v.TaskIdeas[0] = "mutated"
	again, _ := store.FindByID("go-backend")
	if again.TaskIdeas[0] == "mutated" {
		t.Fatal("store must hand out copies")
	}

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SubmitResults(context.Background(), Results{VacancyID: "go-backend", Name: "Ann"}); err != nil {
		t.Fatalf("SubmitResults err: %v", err)
	}
	if got := store.Results("go-backend"); len(got) != 1 || got[0].Name != "Ann" {
		t.Fatalf("unexpected results: %+v", got)
	}
}
