package gptbatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbiehn/gptbatch"
)

// chatHandler answers one decoded chat request with a status code and a list of choice contents.
type chatHandler func(r *http.Request, req openai.ChatCompletionRequest) (status int, choices []string)

func newChatServer(t *testing.T, handle chatHandler) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		status, contents := handle(r, req)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error":{"message":"upstream said %d","type":"server_error"}}`, status)
			return
		}

		resp := openai.ChatCompletionResponse{
			ID:      "chatcmpl-test",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   req.Model,
		}
		for i, c := range contents {
			resp.Choices = append(resp.Choices, openai.ChatCompletionChoice{
				Index:        i,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c},
				FinishReason: "stop",
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, maxConnections int) *gptbatch.Client {
	t.Helper()

	client, err := gptbatch.NewClient(gptbatch.Config{
		MaxConnections: maxConnections,
		APIKey:         "test-key",
		BaseURL:        srv.URL + "/v1/",
		Model:          "test-model",
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv(gptbatch.DefaultAPIKeyEnv, "")

	client, err := gptbatch.NewClient(gptbatch.Config{})

	assert.Nil(t, client)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gptbatch.ErrConfiguration))

	var cfgErr *gptbatch.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, gptbatch.DefaultAPIKeyEnv)
}

func TestNewClientRejectsNegativeMaxConnections(t *testing.T) {
	_, err := gptbatch.NewClient(gptbatch.Config{MaxConnections: -1, APIKey: "k"})

	assert.ErrorIs(t, err, gptbatch.ErrConfiguration)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := gptbatch.NewClient(gptbatch.Config{APIKey: "k"})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, gptbatch.DefaultMaxConnections, client.MaxConnections)
	assert.Equal(t, gptbatch.DefaultModel, client.Model)
	assert.NotNil(t, client.API)
}

func TestNewClientReadsKeyFromEnvironment(t *testing.T) {
	t.Setenv("GPTBATCH_TEST_KEY", "from-env")

	var auth atomic.Value
	srv := newChatServer(t, func(r *http.Request, req openai.ChatCompletionRequest) (int, []string) {
		auth.Store(r.Header.Get("Authorization"))
		return http.StatusOK, []string{"ok"}
	})

	client, err := gptbatch.NewClient(gptbatch.Config{
		APIKeyEnv: "GPTBATCH_TEST_KEY",
		BaseURL:   srv.URL + "/v1",
	})
	require.NoError(t, err)
	defer client.Close()

	out, err := client.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "Bearer from-env", auth.Load())
}

func TestClientComplete(t *testing.T) {
	requests := make(chan openai.ChatCompletionRequest, 1)
	srv := newChatServer(t, func(r *http.Request, req openai.ChatCompletionRequest) (int, []string) {
		requests <- req
		return http.StatusOK, []string{"  the answer\n", "ignored"}
	})
	client := newTestClient(t, srv, 1)

	out, err := client.Complete(context.Background(), "You are terse.", "What is it?")

	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
	got := <-requests
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "You are terse.", got.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)
	assert.Equal(t, "What is it?", got.Messages[1].Content)
}

func TestClientCompleteNoChoices(t *testing.T) {
	srv := newChatServer(t, func(r *http.Request, req openai.ChatCompletionRequest) (int, []string) {
		return http.StatusOK, nil
	})
	client := newTestClient(t, srv, 1)

	out, err := client.Complete(context.Background(), "", "anything")

	require.NoError(t, err)
	assert.Equal(t, gptbatch.NoResponse, out)
}

func TestClientFailuresBecomeResults(t *testing.T) {
	srv := newChatServer(t, func(r *http.Request, req openai.ChatCompletionRequest) (int, []string) {
		if req.Messages[1].Content == "bad" {
			return http.StatusInternalServerError, nil
		}
		return http.StatusOK, []string{strings.ToUpper(req.Messages[1].Content)}
	})
	client := newTestClient(t, srv, 2)

	g := gptbatch.NewGPTBatch(context.Background(), client, nil, nil)
	results := g.RunBatch("sys", []string{"one", "bad", "two"})

	require.Len(t, results, 3)
	assert.Equal(t, "ONE", results[0].Text())
	assert.True(t, results[1].Failed())
	assert.True(t, strings.HasPrefix(results[1].Text(), gptbatch.FailurePrefix))
	assert.Equal(t, "TWO", results[2].Text())
}

func TestClientUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := gptbatch.NewClient(gptbatch.Config{APIKey: "k", BaseURL: url})
	require.NoError(t, err)
	defer client.Close()

	g := gptbatch.NewGPTBatch(context.Background(), client, nil, nil)
	got := g.RunBatchText("sys", []string{"x"})

	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], gptbatch.FailurePrefix))
}

func TestClientRespectsConnectionCeiling(t *testing.T) {
	const (
		ceiling = 3
		n       = 15
	)

	var (
		mu        sync.Mutex
		active    int
		maxActive int
	)
	srv := newChatServer(t, func(r *http.Request, req openai.ChatCompletionRequest) (int, []string) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return http.StatusOK, []string{req.Messages[1].Content + "-OK"}
	})
	client := newTestClient(t, srv, ceiling)

	inputs := make([]string, n)
	for i := range inputs {
		inputs[i] = fmt.Sprint(i)
	}

	g := gptbatch.NewGPTBatch(context.Background(), client, nil, nil)
	results := g.RunBatch("sys", inputs)

	require.Len(t, results, n)
	for i, r := range results {
		assert.False(t, r.Failed(), "request %d failed: %v", i, r.Err)
		assert.Equal(t, inputs[i]+"-OK", r.Output)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxActive, ceiling)
	assert.GreaterOrEqual(t, maxActive, 1)
}
