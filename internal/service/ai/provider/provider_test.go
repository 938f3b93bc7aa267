package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestOpenAIGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"<ctrl>{}</ctrl>hi"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "qwen3-32b"})
	require.NoError(t, err)

	msg, err := p.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "<ctrl>{}</ctrl>hi", msg.Content)
	assert.Equal(t, "qwen3-32b", got["model"])

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIStreamForwardsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, delta := range []string{"<think>", "x</think>", "", "hello"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", delta)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	p, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	sr, err := p.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	defer sr.Close()

	var chunks []string
	for {
		msg, err := sr.Recv()
		if err != nil {
			break
		}
		chunks = append(chunks, msg.Content)
	}
	assert.Equal(t, []string{"<think>", "x</think>", "hello"}, chunks)
}

func TestNewOpenAIRequiresCredentials(t *testing.T) {
	_, err := NewOpenAI(Config{Model: "m"})
	assert.Error(t, err)
}

func TestToGeminiContentsFoldsSystemMessages(t *testing.T) {
	system, contents := toGeminiContents([]*schema.Message{
		schema.SystemMessage("a"),
		schema.SystemMessage("b"),
		schema.UserMessage("q"),
		schema.AssistantMessage("r", nil),
		nil,
	})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
}
