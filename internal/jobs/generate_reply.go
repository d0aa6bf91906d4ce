// Package jobs holds the handlers the worker loop dispatches to.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"gemchat/internal/ai"
	"gemchat/internal/domain"
	"gemchat/internal/queue"
	"gemchat/internal/worker"
)

// errorReplyContent is persisted as the assistant turn when the AI provider
// fails terminally, so the room shows a visible failure instead of silence.
const errorReplyContent = "Sorry, something went wrong while generating a reply. Please try again."

// Store is the slice of the persistence layer the reply handler needs.
type Store interface {
	History(ctx context.Context, roomID uuid.UUID) ([]domain.Message, error)
	SaveAssistantReply(ctx context.Context, roomID, userID uuid.UUID, content string, countUsage bool) error
}

// GenerateReplyHandler turns a queued user prompt into a persisted assistant
// reply. A successful generation is the single place the daily prompt counter
// advances; a failed one never touches it.
type GenerateReplyHandler struct {
	store           Store
	provider        ai.Provider
	maxOutputTokens int
	logger          *slog.Logger
}

// NewGenerateReplyHandler creates a handler for reply-generation jobs.
func NewGenerateReplyHandler(store Store, provider ai.Provider, maxOutputTokens int, logger *slog.Logger) *GenerateReplyHandler {
	return &GenerateReplyHandler{
		store:           store,
		provider:        provider,
		maxOutputTokens: maxOutputTokens,
		logger:          logger,
	}
}

// Handle executes one reply-generation job.
func (h *GenerateReplyHandler) Handle(ctx context.Context, job queue.Job) error {
	roomID, err := uuid.Parse(job.ChatroomID)
	if err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid chatroom id %q: %w", job.ChatroomID, err))
	}
	userID, err := uuid.Parse(job.UserID)
	if err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid user id %q: %w", job.UserID, err))
	}

	history, err := h.store.History(ctx, roomID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return worker.NewPermanentError(fmt.Errorf("chatroom not found: %w", err))
		}
		return fmt.Errorf("load history: %w", err)
	}

	reply, err := h.provider.GenerateReply(ctx, ai.GenerateParams{
		History:         historyTurns(history, job.UserMessageID),
		Prompt:          job.UserContent,
		MaxOutputTokens: h.maxOutputTokens,
	})
	if err != nil {
		// Any provider error that reaches this point is terminal for the job.
		// The provider already retried what was transient on its side, and the
		// job has left the queue, so backing off here would lose the user's
		// message with nothing to show for it. Leave a visible error turn in
		// the room and keep the quota counter where it was.
		h.logger.Error("AI generation failed, persisting error reply",
			"chatroom_id", roomID,
			"user_id", userID,
			"error", err,
		)
		if saveErr := h.store.SaveAssistantReply(ctx, roomID, userID, errorReplyContent, false); saveErr != nil {
			return fmt.Errorf("save error reply: %w", saveErr)
		}
		return nil
	}

	if err := h.store.SaveAssistantReply(ctx, roomID, userID, reply, true); err != nil {
		return fmt.Errorf("save reply: %w", err)
	}

	h.logger.Info("Generated reply",
		"chatroom_id", roomID,
		"user_id", userID,
		"reply_chars", len(reply),
	)
	return nil
}

// historyTurns maps stored messages onto the provider's turn vocabulary. The
// message the job was enqueued for is skipped; it travels as the prompt.
func historyTurns(messages []domain.Message, userMessageID string) []ai.Turn {
	turns := make([]ai.Turn, 0, len(messages))
	for _, m := range messages {
		if m.ID.String() == userMessageID {
			continue
		}
		role := ai.RoleModel
		if m.Role == domain.MessageRoleUser {
			role = ai.RoleUser
		}
		turns = append(turns, ai.Turn{Role: role, Text: m.Content})
	}
	return turns
}
