package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gemchat/internal/domain"
	"gemchat/internal/metrics"
	"gemchat/internal/queue"
)

// maxMessageLength bounds a single prompt; Gemini rejects far larger inputs
// anyway, this just fails fast.
const maxMessageLength = 32_000

// ChatroomStore is the slice of the persistence layer the chatroom service needs.
type ChatroomStore interface {
	CreateChatRoom(ctx context.Context, userID uuid.UUID, name string) (*domain.ChatRoom, error)
	ListChatRooms(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error)
	GetChatRoom(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatRoom, error)
	GetChatRoomWithMessages(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatRoom, error)
	CreateUserMessage(ctx context.Context, roomID, userID uuid.UUID, content string, dailyLimit int) (*domain.Message, error)
}

// Enqueuer hands accepted messages to the generation pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// ListCache caches serialized chatroom lists. All methods are advisory; a
// cache failure degrades to a store read, never to a request failure.
type ListCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ChatroomService manages chat rooms and the producer side of message flow:
// ownership check, quota gate, persist, enqueue.
type ChatroomService struct {
	store      ChatroomStore
	enqueuer   Enqueuer
	cache      ListCache
	cacheTTL   time.Duration
	dailyLimit int
	logger     *slog.Logger
}

// NewChatroomService creates a ChatroomService. dailyLimit is the BASIC tier's
// daily prompt allowance.
func NewChatroomService(store ChatroomStore, enqueuer Enqueuer, cache ListCache, cacheTTL time.Duration, dailyLimit int, logger *slog.Logger) *ChatroomService {
	return &ChatroomService{
		store:      store,
		enqueuer:   enqueuer,
		cache:      cache,
		cacheTTL:   cacheTTL,
		dailyLimit: dailyLimit,
		logger:     logger,
	}
}

func listCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("chatrooms:user:%s", userID)
}

// Create makes a new chat room for the user and invalidates their cached list.
func (s *ChatroomService) Create(ctx context.Context, userID uuid.UUID, name string) (*domain.ChatRoom, error) {
	const op = "ChatroomService.Create"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid(op, "Chatroom name is required")
	}

	if err := s.cache.Delete(ctx, listCacheKey(userID)); err != nil {
		s.logger.Warn("Failed to invalidate chatroom list cache", "user_id", userID, "error", err)
	}

	room, err := s.store.CreateChatRoom(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Chatroom created", "chatroom_id", room.ID, "user_id", userID)
	return room, nil
}

// List returns the user's chat rooms, newest first, served from cache when
// a fresh copy exists.
func (s *ChatroomService) List(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error) {
	key := listCacheKey(userID)

	cached, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Chatroom list cache read failed", "user_id", userID, "error", err)
	} else if hit {
		var rooms []domain.ChatRoom
		if err := json.Unmarshal(cached, &rooms); err == nil {
			return rooms, nil
		}
		s.logger.Warn("Discarding undecodable chatroom list cache entry", "user_id", userID)
	}

	rooms, err := s.store.ListChatRooms(ctx, userID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(rooms); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.cacheTTL); err != nil {
			s.logger.Warn("Chatroom list cache write failed", "user_id", userID, "error", err)
		}
	}

	return rooms, nil
}

// GetDetails returns one chat room with its full message history in
// chronological order. Rooms owned by other users read as not found.
func (s *ChatroomService) GetDetails(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatRoom, error) {
	return s.store.GetChatRoomWithMessages(ctx, roomID, userID)
}

// SendMessage accepts a user prompt: it verifies room ownership, passes the
// quota gate, persists the USER message, and enqueues the generation job.
// A queue failure after the message is persisted surfaces to the caller; the
// message stays (the room shows it without a reply) and quota is untouched
// since only completed generations count.
func (s *ChatroomService) SendMessage(ctx context.Context, roomID, userID uuid.UUID, content string) (*domain.Message, error) {
	const op = "ChatroomService.SendMessage"

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.Invalid(op, "Message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, domain.Invalid(op, "Message content is too long")
	}

	if _, err := s.store.GetChatRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}

	msg, err := s.store.CreateUserMessage(ctx, roomID, userID, content, s.dailyLimit)
	if err != nil {
		if domain.ErrorCode(err) == domain.ERATELIMIT {
			metrics.QuotaRejected()
		}
		return nil, err
	}

	job := queue.Job{
		ChatroomID:    roomID.String(),
		UserID:        userID.String(),
		UserMessageID: msg.ID.String(),
		UserContent:   content,
	}
	if err := s.enqueuer.Enqueue(ctx, job); err != nil {
		s.logger.Error("Failed to enqueue generation job", "chatroom_id", roomID, "user_id", userID, "error", err)
		return nil, err
	}

	metrics.MessageEnqueued()
	s.logger.Info("Message accepted", "chatroom_id", roomID, "user_id", userID, "message_id", msg.ID)
	return msg, nil
}
