package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumierelabs/prewedding-api/internal/config"
	"github.com/lumierelabs/prewedding-api/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.Config{
		ImageGenAPIKey:  "test-key",
		ImageGenBaseURL: srv.URL,
		RequestTimeout:  10 * time.Second,
	}, logger.New())
}

func TestGenerate(t *testing.T) {
	var gotPayload map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs/createTask", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"taskId": "task-1"},
		})
	})
	mux.HandleFunc("/api/v1/jobs/recordInfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "task-1", r.URL.Query().Get("taskId"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{
				"state":      "success",
				"resultJson": `{"resultUrls":["https://cdn.example.com/out.jpg"]}`,
			},
		})
	})

	c := newTestClient(t, mux)
	artifact, err := c.Generate(context.Background(), Options{
		Prompt:    "a couple at a palace during sunset",
		InputURLs: []string{"https://cdn.example.com/photo1.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/out.jpg", artifact.URL)

	assert.Equal(t, "nano-banana-pro", gotPayload["model"])
	input := gotPayload["input"].(map[string]any)
	assert.Equal(t, "3:4", input["aspect_ratio"], "aspect ratio defaults when unset")
	assert.NotNil(t, input["image_input"])
}

func TestGenerate_TaskFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs/createTask", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"taskId": "task-2"},
		})
	})
	mux.HandleFunc("/api/v1/jobs/recordInfo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{
				"state":    "fail",
				"failCode": "500",
				"failMsg":  "content policy",
			},
		})
	})

	c := newTestClient(t, mux)
	_, err := c.Generate(context.Background(), Options{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy")
}

func TestGenerate_CreateRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs/createTask", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 401, "msg": "bad key"})
	})

	c := newTestClient(t, mux)
	_, err := c.Generate(context.Background(), Options{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestGenerate_PollHonorsContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs/createTask", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"taskId": "task-3"},
		})
	})
	mux.HandleFunc("/api/v1/jobs/recordInfo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"state": "generating"},
		})
	})

	c := newTestClient(t, mux)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, Options{Prompt: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
