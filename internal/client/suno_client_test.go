package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songforge/api/internal/client"
	"github.com/songforge/api/internal/config"
	"github.com/songforge/api/internal/model"
)

func newSunoClient(baseURL string) *client.SunoClient {
	return client.NewSunoClient(&config.SunoConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "v4",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSunoClientSubmitGeneration(t *testing.T) {
	ctx := context.Background()

	t.Run("parses the task id from the response envelope", func(t *testing.T) {
		var gotAuth string
		var gotBody map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/v1/generate", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Write([]byte(`{"code":200,"msg":"success","data":{"taskId":"task-abc"}}`))
		}))
		defer server.Close()

		c := newSunoClient(server.URL)
		result, err := c.SubmitGeneration(ctx, &client.GenerateRequest{
			Prompt:      "[Verse 1]\nLyrics",
			Style:       "folk",
			Title:       "Embers",
			CustomMode:  true,
			Model:       "v4",
			CallbackURL: "https://api.example.com/api/v1/callback",
		})

		require.NoError(t, err)
		assert.Equal(t, "task-abc", result.TaskID)
		assert.NotEmpty(t, result.Raw)

		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, "folk", gotBody["style"])
		assert.Equal(t, true, gotBody["customMode"])
		assert.Equal(t, "https://api.example.com/api/v1/callback", gotBody["callBackUrl"])
	})

	t.Run("non-2xx maps to an upstream submission error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"code":429,"msg":"rate limited"}`))
		}))
		defer server.Close()

		c := newSunoClient(server.URL)
		_, err := c.SubmitGeneration(ctx, &client.GenerateRequest{Prompt: "x"})

		require.Error(t, err)
		var upstream *model.UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, model.OpSubmission, upstream.Op)
		assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	})

	t.Run("missing task id in a 2xx response is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":200,"msg":"success","data":{}}`))
		}))
		defer server.Close()

		c := newSunoClient(server.URL)
		_, err := c.SubmitGeneration(ctx, &client.GenerateRequest{Prompt: "x"})

		require.Error(t, err)
		var upstream *model.UpstreamError
		assert.True(t, errors.As(err, &upstream))
	})
}

func TestSunoClientGetRecordInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts status and first track audio url", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/generate/record-info", r.URL.Path)
			require.Equal(t, "task-abc", r.URL.Query().Get("taskId"))

			w.Write([]byte(`{
				"code": 200,
				"msg": "success",
				"data": {
					"taskId": "task-abc",
					"status": "SUCCESS",
					"response": {
						"sunoData": [
							{"id": "a", "audioUrl": "https://cdn.example.com/a.mp3", "title": "Embers", "duration": 182.5},
							{"id": "b", "audioUrl": "https://cdn.example.com/b.mp3", "title": "Embers", "duration": 190.1}
						]
					}
				}
			}`))
		}))
		defer server.Close()

		c := newSunoClient(server.URL)
		info, err := c.GetRecordInfo(ctx, "task-abc")

		require.NoError(t, err)
		assert.Equal(t, "task-abc", info.TaskID)
		assert.Equal(t, "SUCCESS", info.Status)
		assert.Equal(t, "https://cdn.example.com/a.mp3", info.AudioURL)
	})

	t.Run("pending report carries no audio url", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":200,"msg":"success","data":{"taskId":"task-abc","status":"PENDING","response":{}}}`))
		}))
		defer server.Close()

		c := newSunoClient(server.URL)
		info, err := c.GetRecordInfo(ctx, "task-abc")

		require.NoError(t, err)
		assert.Equal(t, "PENDING", info.Status)
		assert.Empty(t, info.AudioURL)
	})

	t.Run("non-2xx maps to an upstream poll error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c := newSunoClient(server.URL)
		_, err := c.GetRecordInfo(ctx, "task-abc")

		require.Error(t, err)
		var upstream *model.UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, model.OpPoll, upstream.Op)
	})
}
