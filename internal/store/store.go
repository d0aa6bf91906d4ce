package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gemchat/internal/domain"
)

// Store exposes the persistence operations used by the services, the
// generation worker and the billing reconciler. The two quota-sensitive
// operations (CreateUserMessage, SaveAssistantReply) each run inside a single
// transaction holding a FOR UPDATE lock on the user row, so concurrent
// requests and concurrent worker instances serialize on the same user.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of an open GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// lockUser loads the user row under FOR UPDATE inside tx and attaches the
// user's subscription (unlocked; only the reconciler writes it).
func lockUser(tx *gorm.DB, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, "id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	var sub domain.Subscription
	err = tx.First(&sub, "user_id = ?", userID).Error
	switch {
	case err == nil:
		user.Subscription = &sub
	case errors.Is(err, gorm.ErrRecordNotFound):
		// User without a subscription row is treated as BASIC.
	default:
		return nil, err
	}
	return &user, nil
}

// translate maps GORM errors onto domain error codes.
func translate(err error, op, notFoundResource, notFoundID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFound(op, notFoundResource, notFoundID)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.Conflict(op, "resource already exists")
	default:
		return domain.Internal(err, op, "store operation failed")
	}
}

// inTx runs fn in a serializable unit; GORM rolls back when fn errors.
func (s *Store) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}
