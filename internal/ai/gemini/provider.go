// Package gemini implements the ai.Provider interface against Google's
// Generative Language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gemchat/internal/ai"
)

const (
	// APIBaseURL is the base URL for the Generative Language API
	APIBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the default Gemini model to use
	DefaultModel = "gemini-2.5-pro"
)

// Config contains configuration for the Gemini provider
type Config struct {
	APIKey         string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using the Gemini generateContent endpoint.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Gemini provider.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// GenerateReply sends the conversation to Gemini and returns the reply text.
func (p *Provider) GenerateReply(ctx context.Context, params ai.GenerateParams) (string, error) {
	req, err := p.buildGenerateRequest(ctx, params)
	if err != nil {
		return "", ai.WrapError("build request", err)
	}

	resp, err := p.executeWithRetry(ctx, req)
	if err != nil {
		return "", ai.WrapError("execute request", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", ai.WrapError("parse response", err)
	}
	return text, nil
}

// API request/response shapes for models/{model}:generateContent

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text string `json:"text"`
}

type apiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type apiRequest struct {
	Contents         []apiContent        `json:"contents"`
	GenerationConfig apiGenerationConfig `json:"generationConfig"`
}

type apiResponse struct {
	Candidates []struct {
		Content apiContent `json:"content"`
	} `json:"candidates"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// buildGenerateRequest builds the HTTP request carrying the full ordered
// history plus the new prompt as the final user turn.
func (p *Provider) buildGenerateRequest(ctx context.Context, params ai.GenerateParams) (*http.Request, error) {
	contents := make([]apiContent, 0, len(params.History)+1)
	for _, turn := range params.History {
		contents = append(contents, apiContent{
			Role:  string(turn.Role),
			Parts: []apiPart{{Text: turn.Text}},
		})
	}
	contents = append(contents, apiContent{
		Role:  string(ai.RoleUser),
		Parts: []apiPart{{Text: params.Prompt}},
	})

	reqBody := apiRequest{
		Contents: contents,
		GenerationConfig: apiGenerationConfig{
			MaxOutputTokens: params.MaxOutputTokens,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", APIBaseURL, p.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	return req, nil
}

// executeWithRetry executes the request with exponential backoff on
// transient errors. Whatever survives the retries is terminal for the job.
func (p *Provider) executeWithRetry(ctx context.Context, req *http.Request) (*apiResponse, error) {
	var lastErr error

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		req.Body = io.NopCloser(bytes.NewReader(body))

		resp, err := p.executeRequest(req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !ai.IsRetryable(err) {
			return nil, err
		}
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Warn("Retrying Gemini request",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// executeRequest performs a single HTTP round trip and maps failure onto the
// ai package's sentinel errors.
func (p *Provider) executeRequest(req *http.Request) (*apiResponse, error) {
	httpResp, err := p.client.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ai.ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
		var resp apiResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &resp, nil
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, ai.ErrRateLimit
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, ai.ErrUnauthorized
	case httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ai.ErrUnavailable, httpResp.StatusCode)
	default:
		var apiErr apiErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("gemini api error (%s): %s", apiErr.Error.Status, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("gemini api error: status %d", httpResp.StatusCode)
	}
}

// extractText pulls the first candidate's text out of the response.
func extractText(resp *apiResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", ai.ErrEmptyResponse
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}
