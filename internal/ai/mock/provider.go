package mock

import (
	"context"
	"log/slog"

	"gemchat/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	GenerateReplyResponse string
	GenerateReplyError    error

	// Call tracking for testing
	GenerateReplyCalls int
	LastParams         ai.GenerateParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// GenerateReply returns the configured response or a canned reply echoing the
// prompt, so development conversations stay readable.
func (p *Provider) GenerateReply(ctx context.Context, params ai.GenerateParams) (string, error) {
	p.GenerateReplyCalls++
	p.LastParams = params

	if p.GenerateReplyError != nil {
		return "", p.GenerateReplyError
	}
	if p.GenerateReplyResponse != "" {
		return p.GenerateReplyResponse, nil
	}

	return "Mock reply to: " + params.Prompt, nil
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.GenerateReplyCalls = 0
	p.GenerateReplyResponse = ""
	p.GenerateReplyError = nil
	p.LastParams = ai.GenerateParams{}
}
