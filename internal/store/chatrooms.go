package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gemchat/internal/domain"
)

// CreateChatRoom creates a named room owned by the user.
func (s *Store) CreateChatRoom(ctx context.Context, userID uuid.UUID, name string) (*domain.ChatRoom, error) {
	const op = "store.create_chatroom"

	room := &domain.ChatRoom{UserID: userID, Name: name}
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		return nil, translate(err, op, "chatroom", name)
	}
	return room, nil
}

// ListChatRooms returns the user's rooms, newest first.
func (s *Store) ListChatRooms(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error) {
	const op = "store.list_chatrooms"

	var rooms []domain.ChatRoom
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, translate(err, op, "chatroom", userID.String())
	}
	return rooms, nil
}

// GetChatRoom loads a room, enforcing ownership. A room belonging to another
// user is indistinguishable from a missing one.
func (s *Store) GetChatRoom(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatRoom, error) {
	const op = "store.get_chatroom"

	var room domain.ChatRoom
	err := s.db.WithContext(ctx).
		First(&room, "id = ? AND user_id = ?", roomID, userID).Error
	if err != nil {
		return nil, translate(err, op, "chatroom", roomID.String())
	}
	return &room, nil
}

// GetChatRoomWithMessages loads a room and its full message history in
// creation order, enforcing ownership.
func (s *Store) GetChatRoomWithMessages(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatRoom, error) {
	const op = "store.get_chatroom_messages"

	var room domain.ChatRoom
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at ASC")
		}).
		First(&room, "id = ? AND user_id = ?", roomID, userID).Error
	if err != nil {
		return nil, translate(err, op, "chatroom", roomID.String())
	}
	return &room, nil
}

// History returns a room's messages in creation order. Used by the worker to
// rebuild conversation context; the order must never be changed.
func (s *Store) History(ctx context.Context, roomID uuid.UUID) ([]domain.Message, error) {
	const op = "store.history"

	var messages []domain.Message
	err := s.db.WithContext(ctx).
		Where("chat_room_id = ?", roomID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, translate(err, op, "chatroom", roomID.String())
	}
	return messages, nil
}

// CreateUserMessage is the quota gate's atomic unit: inside one transaction it
// locks the user row, authorizes the prompt against the quota ledger and the
// subscription state, and persists the USER message. Two concurrent requests
// for the same user serialize on the row lock, so neither can pass the gate on
// a counter the other is about to consume.
//
// The counter itself is not advanced here; RecordUsage runs in the worker
// transaction after a successful generation, so a failed generation never
// consumes quota.
func (s *Store) CreateUserMessage(ctx context.Context, roomID, userID uuid.UUID, content string, dailyLimit int) (*domain.Message, error) {
	const op = "store.create_user_message"

	msg := &domain.Message{
		ChatRoomID: roomID,
		Role:       domain.MessageRoleUser,
		Content:    content,
	}
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		tier := user.EffectiveTier(now)
		if err := domain.AuthorizePrompt(tier, user.DailyPromptCount, user.LastPromptReset, now, dailyLimit); err != nil {
			return err
		}

		return tx.Create(msg).Error
	})
	if err != nil {
		if domain.ErrorCode(err) == domain.ERATELIMIT {
			return nil, err
		}
		return nil, translate(err, op, "user", userID.String())
	}
	return msg, nil
}

// SaveAssistantReply is the worker's atomic unit: inside one transaction it
// persists the AI message and, when countUsage is set and the user's effective
// tier is BASIC, applies RecordUsage to the locked user row. The AI-failure
// path calls this with countUsage=false so the terminal error message becomes
// visible without consuming quota.
func (s *Store) SaveAssistantReply(ctx context.Context, roomID, userID uuid.UUID, content string, countUsage bool) error {
	const op = "store.save_assistant_reply"

	err := s.inTx(ctx, func(tx *gorm.DB) error {
		msg := &domain.Message{
			ChatRoomID: roomID,
			Role:       domain.MessageRoleAI,
			Content:    content,
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		if !countUsage {
			return nil
		}

		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		if user.EffectiveTier(now) != domain.SubscriptionTierBasic {
			return nil
		}

		count, reset := domain.RecordUsage(user.DailyPromptCount, user.LastPromptReset, now)
		return tx.Model(&domain.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{
				"daily_prompt_count": count,
				"last_prompt_reset":  reset,
			}).Error
	})
	return translate(err, op, "user", userID.String())
}
