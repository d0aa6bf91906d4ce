// Package service contains the business logic layer.
//
// Services orchestrate the store, the queue, and external providers. They own
// input validation, business rule enforcement, and translation of failures
// into domain errors; handlers above them only shape HTTP.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gemchat/internal/auth"
	"gemchat/internal/domain"
)

const (
	// bcryptCost 12 takes roughly 250ms on current hardware. Not configurable
	// at runtime so it cannot be weakened by a bad env value.
	bcryptCost = 12

	// minPasswordLength is the minimum accepted password length.
	minPasswordLength = 6

	otpDigits = 6
)

// UserStore is the slice of the persistence layer the user service needs.
type UserStore interface {
	CreateUserWithSubscription(ctx context.Context, mobileNumber, passwordHash string) (*domain.User, error)
	GetUserByMobile(ctx context.Context, mobileNumber string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	SetUserOTP(ctx context.Context, userID uuid.UUID, otp string, expireAt time.Time) error
	ClearUserOTP(ctx context.Context, userID uuid.UUID) error
	SetUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// UserService implements signup and the OTP login flow. Login is passwordless:
// an OTP is issued against the mobile number and exchanged for a bearer token.
type UserService struct {
	store  UserStore
	tokens *auth.TokenManager
	otpTTL time.Duration
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(store UserStore, tokens *auth.TokenManager, otpTTL time.Duration, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		tokens: tokens,
		otpTTL: otpTTL,
		logger: logger,
	}
}

// Signup registers a new user and their starting BASIC subscription in one
// transaction. The password is optional; login runs on OTP either way.
func (s *UserService) Signup(ctx context.Context, mobileNumber, password string) (*domain.User, error) {
	const op = "UserService.Signup"

	mobileNumber = strings.TrimSpace(mobileNumber)
	if mobileNumber == "" {
		return nil, domain.Invalid(op, "Mobile number is required")
	}

	passwordHash := ""
	if password != "" {
		if len(password) < minPasswordLength {
			return nil, domain.Invalid(op, fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to hash password")
		}
		passwordHash = string(hash)
	}

	user, err := s.store.CreateUserWithSubscription(ctx, mobileNumber, passwordHash)
	if err != nil {
		if domain.ErrorCode(err) == domain.ECONFLICT {
			return nil, domain.Conflict(op, "User with this mobile number already exists")
		}
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "mobile_number", user.MobileNumber)
	return user, nil
}

// SendOTP issues a fresh login OTP for the mobile number and returns it.
// There is no SMS provider; the caller is responsible for delivery.
func (s *UserService) SendOTP(ctx context.Context, mobileNumber string) (string, error) {
	const op = "UserService.SendOTP"
	return s.issueOTP(ctx, op, mobileNumber)
}

// ForgotPasswordOTP issues an OTP for the password recovery flow. It is the
// same ledger as login OTPs; verifying either consumes it.
func (s *UserService) ForgotPasswordOTP(ctx context.Context, mobileNumber string) (string, error) {
	const op = "UserService.ForgotPasswordOTP"
	return s.issueOTP(ctx, op, mobileNumber)
}

func (s *UserService) issueOTP(ctx context.Context, op, mobileNumber string) (string, error) {
	mobileNumber = strings.TrimSpace(mobileNumber)
	if mobileNumber == "" {
		return "", domain.Invalid(op, "Mobile number is required")
	}

	user, err := s.store.GetUserByMobile(ctx, mobileNumber)
	if err != nil {
		return "", err
	}

	otp, err := generateOTP()
	if err != nil {
		return "", domain.Internal(err, op, "Failed to generate OTP")
	}

	expireAt := time.Now().Add(s.otpTTL)
	if err := s.store.SetUserOTP(ctx, user.ID, otp, expireAt); err != nil {
		return "", err
	}

	s.logger.Info("OTP issued", "user_id", user.ID, "expires_at", expireAt)
	return otp, nil
}

// VerifyOTP checks the OTP for the mobile number and, on success, clears it
// and returns a signed bearer token carrying the user's effective tier.
func (s *UserService) VerifyOTP(ctx context.Context, mobileNumber, otp string) (string, error) {
	const op = "UserService.VerifyOTP"

	mobileNumber = strings.TrimSpace(mobileNumber)
	if mobileNumber == "" || otp == "" {
		return "", domain.Invalid(op, "Mobile number and OTP are required")
	}

	user, err := s.store.GetUserByMobile(ctx, mobileNumber)
	if err != nil {
		return "", err
	}

	if user.OTP == "" || user.OTP != otp {
		return "", domain.Unauthorized(op, "Invalid OTP")
	}
	if user.OTPExpireAt != nil && user.OTPExpireAt.Before(time.Now()) {
		return "", domain.Unauthorized(op, "OTP expired")
	}

	if err := s.store.ClearUserOTP(ctx, user.ID); err != nil {
		return "", err
	}

	token, err := s.tokens.Sign(user.ID, user.MobileNumber, user.EffectiveTier(time.Now()))
	if err != nil {
		return "", domain.Internal(err, op, "Failed to sign token")
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return token, nil
}

// ChangePassword replaces the user's password. Used after an OTP-verified
// recovery, so the current password is not required.
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	const op = "UserService.ChangePassword"

	if len(newPassword) < minPasswordLength {
		return domain.Invalid(op, fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return domain.Internal(err, op, "Failed to hash password")
	}

	if err := s.store.SetUserPassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.Info("Password changed", "user_id", userID)
	return nil
}

// GetUserDetails returns the user with their subscription loaded.
func (s *UserService) GetUserDetails(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// generateOTP returns a random 6-digit code with a uniform distribution.
func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
