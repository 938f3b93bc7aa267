package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Text string `json:"text"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi"}`))
	if err := DecodeJSON(req, &dst); err != nil {
		t.Fatalf("DecodeJSON err: %v", err)
	}
	if dst.Text != "hi" {
		t.Fatalf("unexpected text %q", dst.Text)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi","extra":1}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected error for unknown field")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"a"}{"text":"b"}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestSendSSEChunk(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)
	SendSSEChunk(rec, rec, map[string]string{"event": "delta"})

	if got := rec.Body.String(); got != "data: {\"event\":\"delta\"}\n\n" {
		t.Fatalf("unexpected chunk %q", got)
	}
	if !rec.Flushed {
		t.Fatal("expected flush")
	}
}
