package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gemchat/internal/domain"
)

// CreateUserWithSubscription creates the user and their BASIC/ACTIVE
// subscription in one transaction, so a user row never exists without its
// authoritative subscription row.
func (s *Store) CreateUserWithSubscription(ctx context.Context, mobileNumber, passwordHash string) (*domain.User, error) {
	const op = "store.create_user"

	user := &domain.User{
		MobileNumber: mobileNumber,
		PasswordHash: passwordHash,
	}
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		sub := &domain.Subscription{
			UserID: user.ID,
			Tier:   domain.SubscriptionTierBasic,
			Status: domain.SubscriptionStatusActive,
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		user.Subscription = sub
		return nil
	})
	if err != nil {
		return nil, translate(err, op, "user", mobileNumber)
	}
	return user, nil
}

// GetUserByMobile loads a user (with subscription) by mobile number.
func (s *Store) GetUserByMobile(ctx context.Context, mobileNumber string) (*domain.User, error) {
	const op = "store.get_user_by_mobile"

	var user domain.User
	err := s.db.WithContext(ctx).Preload("Subscription").
		First(&user, "mobile_number = ?", mobileNumber).Error
	if err != nil {
		return nil, translate(err, op, "user", mobileNumber)
	}
	return &user, nil
}

// GetUserByID loads a user (with subscription) by ID.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "store.get_user"

	var user domain.User
	err := s.db.WithContext(ctx).Preload("Subscription").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, op, "user", id.String())
	}
	return &user, nil
}

// SetUserOTP stores a freshly issued OTP and its expiry on the user.
func (s *Store) SetUserOTP(ctx context.Context, userID uuid.UUID, otp string, expireAt time.Time) error {
	const op = "store.set_otp"

	err := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"otp": otp, "otp_expire_at": expireAt}).Error
	return translate(err, op, "user", userID.String())
}

// ClearUserOTP invalidates any outstanding OTP after a successful verification.
func (s *Store) ClearUserOTP(ctx context.Context, userID uuid.UUID) error {
	const op = "store.clear_otp"

	err := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"otp": "", "otp_expire_at": nil}).Error
	return translate(err, op, "user", userID.String())
}

// SetUserPassword replaces the user's password hash.
func (s *Store) SetUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	const op = "store.set_password"

	err := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).
		Update("password_hash", passwordHash).Error
	return translate(err, op, "user", userID.String())
}
