package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/songforge/api/internal/config"
	"github.com/songforge/api/internal/model"
)

// MusicProvider defines the interface for the hosted rendering provider
type MusicProvider interface {
	SubmitGeneration(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
	GetRecordInfo(ctx context.Context, taskID string) (*RecordInfo, error)
}

// SunoClient implements MusicProvider for the Suno rendering API
type SunoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// GenerateRequest represents a rendering submission
type GenerateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Title        string `json:"title"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	CallbackURL  string `json:"callBackUrl,omitempty"`
}

// GenerateResult carries the provider's task handle plus the raw response
// body so callers can echo the provider's answer.
type GenerateResult struct {
	TaskID string
	Raw    json.RawMessage
}

// RecordInfo is a normalized status report from the provider
type RecordInfo struct {
	TaskID   string
	Status   string
	AudioURL string
}

// generateEnvelope is the provider's response wrapper
type generateEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

// recordInfoEnvelope wraps the record-info payload. Audio URLs live in the
// nested track list; the first track wins.
type recordInfoEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID   string `json:"taskId"`
		Status   string `json:"status"`
		Response struct {
			SunoData []struct {
				ID       string  `json:"id"`
				AudioURL string  `json:"audioUrl"`
				Title    string  `json:"title"`
				Duration float64 `json:"duration"`
			} `json:"sunoData"`
		} `json:"response"`
	} `json:"data"`
}

// NewSunoClient creates a new Suno API client
func NewSunoClient(cfg *config.SunoConfig, logger *slog.Logger) *SunoClient {
	return &SunoClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// SubmitGeneration sends a rendering request and returns the assigned task ID
func (c *SunoClient) SubmitGeneration(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	body, status, err := c.post(ctx, "/api/v1/generate", req)
	if err != nil {
		return nil, &model.UpstreamError{Op: model.OpSubmission, Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &model.UpstreamError{Op: model.OpSubmission, StatusCode: status, Body: string(body)}
	}

	var env generateEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &model.UpstreamError{Op: model.OpSubmission, StatusCode: status, Body: string(body), Err: err}
	}
	if env.Data.TaskID == "" {
		return nil, &model.UpstreamError{Op: model.OpSubmission, StatusCode: status, Body: string(body), Err: fmt.Errorf("no task id in response")}
	}

	return &GenerateResult{TaskID: env.Data.TaskID, Raw: body}, nil
}

// GetRecordInfo retrieves the current status of a rendering task
func (c *SunoClient) GetRecordInfo(ctx context.Context, taskID string) (*RecordInfo, error) {
	endpoint := fmt.Sprintf("/api/v1/generate/record-info?taskId=%s", taskID)
	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, &model.UpstreamError{Op: model.OpPoll, Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &model.UpstreamError{Op: model.OpPoll, StatusCode: status, Body: string(body)}
	}

	var env recordInfoEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &model.UpstreamError{Op: model.OpPoll, StatusCode: status, Body: string(body), Err: err}
	}

	info := &RecordInfo{
		TaskID: env.Data.TaskID,
		Status: env.Data.Status,
	}
	if info.TaskID == "" {
		info.TaskID = taskID
	}
	if len(env.Data.Response.SunoData) > 0 {
		info.AudioURL = env.Data.Response.SunoData[0].AudioURL
	}
	return info, nil
}

// post sends a POST request with JSON body and returns the raw response
func (c *SunoClient) post(ctx context.Context, endpoint string, body interface{}) ([]byte, int, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req)
}

// get sends a GET request and returns the raw response
func (c *SunoClient) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req)
}

func (c *SunoClient) doRequest(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("suno request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("suno request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("suno response", "status", resp.StatusCode, "url", req.URL.String())

	return respBody, resp.StatusCode, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *SunoClient) IsConfigured() bool {
	return c.apiKey != ""
}
