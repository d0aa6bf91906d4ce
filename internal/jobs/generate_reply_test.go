package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemchat/internal/ai"
	"gemchat/internal/ai/mock"
	"gemchat/internal/domain"
	"gemchat/internal/queue"
	"gemchat/internal/worker"
)

type fakeStore struct {
	history    []domain.Message
	historyErr error

	savedRoomID  uuid.UUID
	savedUserID  uuid.UUID
	savedContent string
	savedCounted bool
	saveCalls    int
	saveErr      error
}

func (s *fakeStore) History(ctx context.Context, roomID uuid.UUID) ([]domain.Message, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.history, nil
}

func (s *fakeStore) SaveAssistantReply(ctx context.Context, roomID, userID uuid.UUID, content string, countUsage bool) error {
	s.saveCalls++
	s.savedRoomID = roomID
	s.savedUserID = userID
	s.savedContent = content
	s.savedCounted = countUsage
	return s.saveErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJob(roomID, userID, messageID uuid.UUID) queue.Job {
	return queue.Job{
		ChatroomID:    roomID.String(),
		UserID:        userID.String(),
		UserMessageID: messageID.String(),
		UserContent:   "what is the tallest mountain?",
	}
}

func TestHandleGeneratesAndPersistsReply(t *testing.T) {
	roomID, userID, msgID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{
		history: []domain.Message{
			{ID: uuid.New(), Role: domain.MessageRoleUser, Content: "hello"},
			{ID: uuid.New(), Role: domain.MessageRoleAI, Content: "hi there"},
			{ID: msgID, Role: domain.MessageRoleUser, Content: "what is the tallest mountain?"},
		},
	}
	provider := mock.New(testLogger())
	provider.GenerateReplyResponse = "Mount Everest."

	h := NewGenerateReplyHandler(store, provider, 2000, testLogger())
	err := h.Handle(context.Background(), testJob(roomID, userID, msgID))
	require.NoError(t, err)

	require.Equal(t, 1, store.saveCalls)
	assert.Equal(t, roomID, store.savedRoomID)
	assert.Equal(t, userID, store.savedUserID)
	assert.Equal(t, "Mount Everest.", store.savedContent)
	assert.True(t, store.savedCounted, "successful generation must count against quota")

	// The enqueued message travels as the prompt, not as history.
	require.Len(t, provider.LastParams.History, 2)
	assert.Equal(t, ai.RoleUser, provider.LastParams.History[0].Role)
	assert.Equal(t, ai.RoleModel, provider.LastParams.History[1].Role)
	assert.Equal(t, "what is the tallest mountain?", provider.LastParams.Prompt)
	assert.Equal(t, 2000, provider.LastParams.MaxOutputTokens)
}

func TestHandleTerminalProviderFailurePersistsErrorReply(t *testing.T) {
	roomID, userID, msgID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{}
	provider := mock.New(testLogger())
	provider.GenerateReplyError = ai.ErrEmptyResponse

	h := NewGenerateReplyHandler(store, provider, 2000, testLogger())
	err := h.Handle(context.Background(), testJob(roomID, userID, msgID))
	require.NoError(t, err)

	require.Equal(t, 1, store.saveCalls)
	assert.Equal(t, errorReplyContent, store.savedContent)
	assert.False(t, store.savedCounted, "failed generation must not consume quota")
}

// A rate limit that survives the provider's own retries is still a provider
// failure: the job already left the queue, so it gets an error reply recorded
// rather than a backoff that would drop it on the floor.
func TestHandleRateLimitedProviderFailureRecordsErrorReply(t *testing.T) {
	roomID, userID, msgID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{}
	provider := mock.New(testLogger())
	provider.GenerateReplyError = ai.ErrRateLimit

	h := NewGenerateReplyHandler(store, provider, 2000, testLogger())
	err := h.Handle(context.Background(), testJob(roomID, userID, msgID))
	require.NoError(t, err)

	require.Equal(t, 1, store.saveCalls, "error reply must be persisted, not retried")
	assert.Equal(t, errorReplyContent, store.savedContent)
	assert.False(t, store.savedCounted, "rate-limited generation must not consume quota")

	// Once the provider clears, the next job goes through normally.
	provider.Reset()
	provider.GenerateReplyResponse = "K2."
	err = h.Handle(context.Background(), testJob(roomID, userID, uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, 2, store.saveCalls)
	assert.Equal(t, "K2.", store.savedContent)
	assert.True(t, store.savedCounted)
	assert.Equal(t, 1, provider.GenerateReplyCalls)
}

func TestHandleInvalidIDsArePermanent(t *testing.T) {
	h := NewGenerateReplyHandler(&fakeStore{}, mock.New(testLogger()), 2000, testLogger())

	err := h.Handle(context.Background(), queue.Job{ChatroomID: "not-a-uuid", UserID: uuid.NewString()})
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))

	err = h.Handle(context.Background(), queue.Job{ChatroomID: uuid.NewString(), UserID: "nope"})
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}

func TestHandleMissingChatroomIsPermanent(t *testing.T) {
	roomID, userID, msgID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{historyErr: domain.NotFound("store.History", "chatroom", roomID.String())}

	h := NewGenerateReplyHandler(store, mock.New(testLogger()), 2000, testLogger())
	err := h.Handle(context.Background(), testJob(roomID, userID, msgID))

	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}

func TestHandleStoreFailureIsTransient(t *testing.T) {
	roomID, userID, msgID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{historyErr: errors.New("connection refused")}

	h := NewGenerateReplyHandler(store, mock.New(testLogger()), 2000, testLogger())
	err := h.Handle(context.Background(), testJob(roomID, userID, msgID))

	require.Error(t, err)
	assert.False(t, worker.IsPermanent(err))
}
