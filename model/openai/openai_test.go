package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/model"
)

func newTestServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_NonStreaming(t *testing.T) {
	var req map[string]any
	srv := newTestServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "A fine day."}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
	}`, &req)

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.Model = "gpt-4o-mini"
	})

	text, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "Be brief.",
		Prompt:       "journal today",
		MaxTokens:    42,
	})
	require.NoError(t, err)
	assert.Equal(t, "A fine day.", text)

	assert.Equal(t, "gpt-4o-mini", req["model"])
	assert.EqualValues(t, 42, req["max_completion_tokens"])
	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestGenerate_APIError(t *testing.T) {
	srv := newTestServer(t, http.StatusBadRequest, `{"error": {"message": "bad request", "type": "invalid_request_error"}}`, nil)
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
	})

	_, err := model.Collect(context.Background(), m, model.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.Model = "gpt-4o"
	})
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai"}, m.Info())
}

func TestGenerate_StreamingStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 100; i++ {
			fmt.Fprintf(w, "data: {\"id\":\"chunk-%d\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o-mini\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"},\"finish_reason\":null}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
	})

	ctx, cancel := context.WithCancel(context.Background())
	respCh, errCh := m.Generate(ctx, model.Request{Prompt: "journal today", Stream: true})

	first, ok := <-respCh
	require.True(t, ok)
	assert.True(t, first.Partial)
	cancel()

	done := make(chan struct{})
	go func() {
		for range errCh {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream goroutine still running after cancellation")
	}
}
