package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

type fakeReader struct {
	chunks []string
	err    error
	closed bool
}

func (r *fakeReader) Recv() (string, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	return chunk, nil
}

func (r *fakeReader) Close() { r.closed = true }

func decodeEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		payload := strings.TrimPrefix(block, "data: ")
		var ev StreamResponse
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("decode event %q: %v", block, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestRelayStreamsDeltasAndEnd(t *testing.T) {
	rec := httptest.NewRecorder()
	body := &fakeReader{chunks: []string{"Reverse ", "a string."}}
	task := &interview.TaskMetadata{Type: interview.TaskCode, Language: interview.LanguageGo}

	if err := Relay(context.Background(), rec, rec, "room-1", task, body); err != nil {
		t.Fatalf("Relay err: %v", err)
	}
	if !body.closed {
		t.Fatal("expected body to be closed")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := decodeEvents(t, rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Event != "start" || events[0].Task == nil || events[0].Task.Language != interview.LanguageGo {
		t.Fatalf("unexpected start event: %+v", events[0])
	}
	if events[1].Content != "Reverse " || events[2].Content != "a string." {
		t.Fatalf("unexpected deltas: %+v %+v", events[1], events[2])
	}
	if events[3].Event != "end" || !events[3].Finished || events[3].Content != "Reverse a string." {
		t.Fatalf("unexpected end event: %+v", events[3])
	}
}

func TestRelayReportsFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	boom := errors.New("upstream reset")
	body := &fakeReader{chunks: []string{"partial"}, err: boom}

	if err := Relay(context.Background(), rec, rec, "room-1", nil, body); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	events := decodeEvents(t, rec.Body.String())
	last := events[len(events)-1]
	if last.Event != "error" || !strings.Contains(last.Error, "upstream reset") {
		t.Fatalf("unexpected last event: %+v", last)
	}
}

func TestRelayStopsWhenClientLeaves(t *testing.T) {
	rec := httptest.NewRecorder()
	body := &fakeReader{chunks: []string{"a", "b"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Relay(ctx, rec, rec, "room-1", nil, body); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !body.closed {
		t.Fatal("expected body to be closed")
	}
}
