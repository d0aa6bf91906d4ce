// Package ai defines the contract with the generation provider. The worker
// depends only on this interface; the concrete Gemini client and the mock
// used in tests live in subpackages.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role is the provider's turn-role vocabulary. Stored message roles map onto
// it as USER→RoleUser and AI→RoleModel.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one prior exchange in a conversation, oldest first.
type Turn struct {
	Role Role
	Text string
}

// GenerateParams carries the ordered history plus the new prompt.
type GenerateParams struct {
	History         []Turn
	Prompt          string
	MaxOutputTokens int
}

// Provider generates a chat reply from conversation context.
type Provider interface {
	// GenerateReply returns the model's reply text, or a provider error.
	// History order is the conversation order and must be preserved.
	GenerateReply(ctx context.Context, params GenerateParams) (string, error)
}

// ProviderConfig contains common configuration for providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for provider operations
var (
	// ErrRateLimit indicates the API rate limit has been exceeded
	ErrRateLimit = errors.New("ai provider rate limit exceeded")

	// ErrTimeout indicates the request timed out
	ErrTimeout = errors.New("ai request timed out")

	// ErrUnavailable indicates the AI service is temporarily unavailable
	ErrUnavailable = errors.New("ai service temporarily unavailable")

	// ErrUnauthorized indicates invalid API credentials
	ErrUnauthorized = errors.New("ai provider authentication failed")

	// ErrEmptyResponse indicates the provider returned no usable candidate
	ErrEmptyResponse = errors.New("ai provider returned an empty response")
)

// IsRetryable returns true if the error is transient and worth retrying
// inside the provider. Errors that survive the provider's own retries are
// terminal for the job that triggered them.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

// WrapError wraps an error with context about the AI operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
