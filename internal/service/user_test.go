package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gemchat/internal/auth"
	"gemchat/internal/domain"
)

type fakeUserStore struct {
	usersByMobile map[string]*domain.User
	usersByID     map[uuid.UUID]*domain.User

	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		usersByMobile: map[string]*domain.User{},
		usersByID:     map[uuid.UUID]*domain.User{},
	}
}

func (f *fakeUserStore) add(user *domain.User) *domain.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.usersByMobile[user.MobileNumber] = user
	f.usersByID[user.ID] = user
	return user
}

func (f *fakeUserStore) CreateUserWithSubscription(ctx context.Context, mobileNumber, passwordHash string) (*domain.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, exists := f.usersByMobile[mobileNumber]; exists {
		return nil, domain.Conflict("store.CreateUserWithSubscription", "duplicate")
	}
	return f.add(&domain.User{
		MobileNumber: mobileNumber,
		PasswordHash: passwordHash,
		Subscription: &domain.Subscription{
			Tier:   domain.SubscriptionTierBasic,
			Status: domain.SubscriptionStatusActive,
		},
	}), nil
}

func (f *fakeUserStore) GetUserByMobile(ctx context.Context, mobileNumber string) (*domain.User, error) {
	u, ok := f.usersByMobile[mobileNumber]
	if !ok {
		return nil, domain.NotFound("store.GetUserByMobile", "user", mobileNumber)
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f.usersByID[id]
	if !ok {
		return nil, domain.NotFound("store.GetUserByID", "user", id.String())
	}
	return u, nil
}

func (f *fakeUserStore) SetUserOTP(ctx context.Context, userID uuid.UUID, otp string, expireAt time.Time) error {
	u := f.usersByID[userID]
	u.OTP = otp
	u.OTPExpireAt = &expireAt
	return nil
}

func (f *fakeUserStore) ClearUserOTP(ctx context.Context, userID uuid.UUID) error {
	u := f.usersByID[userID]
	u.OTP = ""
	u.OTPExpireAt = nil
	return nil
}

func (f *fakeUserStore) SetUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	f.usersByID[userID].PasswordHash = passwordHash
	return nil
}

func newUserService(t *testing.T, store UserStore) *UserService {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUserService(store, tokens, 5*time.Minute, logger)
}

func TestSignupCreatesUserWithHashedPassword(t *testing.T) {
	store := newFakeUserStore()
	svc := newUserService(t, store)

	user, err := svc.Signup(context.Background(), "+15551234567", "hunter2secret")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", user.MobileNumber)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "hunter2secret", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2secret")))
}

func TestSignupPasswordIsOptional(t *testing.T) {
	store := newFakeUserStore()
	svc := newUserService(t, store)

	user, err := svc.Signup(context.Background(), "+15551234567", "")
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash)
}

func TestSignupValidation(t *testing.T) {
	svc := newUserService(t, newFakeUserStore())

	_, err := svc.Signup(context.Background(), "   ", "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.Signup(context.Background(), "+15551234567", "short")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestSignupDuplicateMobileConflicts(t *testing.T) {
	store := newFakeUserStore()
	svc := newUserService(t, store)

	_, err := svc.Signup(context.Background(), "+15551234567", "")
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), "+15551234567", "")
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestSendOTPStoresCodeWithExpiry(t *testing.T) {
	store := newFakeUserStore()
	user := store.add(&domain.User{MobileNumber: "+15551234567"})
	svc := newUserService(t, store)

	otp, err := svc.SendOTP(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Len(t, otp, 6)
	assert.Equal(t, otp, user.OTP)
	require.NotNil(t, user.OTPExpireAt)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *user.OTPExpireAt, 5*time.Second)
}

func TestSendOTPUnknownUser(t *testing.T) {
	svc := newUserService(t, newFakeUserStore())

	_, err := svc.SendOTP(context.Background(), "+15550000000")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestVerifyOTPIssuesTokenAndClearsCode(t *testing.T) {
	store := newFakeUserStore()
	expires := time.Now().Add(5 * time.Minute)
	user := store.add(&domain.User{
		MobileNumber: "+15551234567",
		OTP:          "123456",
		OTPExpireAt:  &expires,
	})
	svc := newUserService(t, store)

	token, err := svc.VerifyOTP(context.Background(), "+15551234567", "123456")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Empty(t, user.OTP, "OTP is single use")

	tokens, err := auth.NewTokenManager("test-secret")
	require.NoError(t, err)
	gotID, claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotID)
	assert.Equal(t, "+15551234567", claims.MobileNumber)
	assert.Equal(t, domain.SubscriptionTierBasic, claims.Tier)
}

func TestVerifyOTPRejectsWrongCode(t *testing.T) {
	store := newFakeUserStore()
	expires := time.Now().Add(5 * time.Minute)
	store.add(&domain.User{MobileNumber: "+15551234567", OTP: "123456", OTPExpireAt: &expires})
	svc := newUserService(t, store)

	_, err := svc.VerifyOTP(context.Background(), "+15551234567", "654321")
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestVerifyOTPRejectsExpiredCode(t *testing.T) {
	store := newFakeUserStore()
	expired := time.Now().Add(-time.Minute)
	store.add(&domain.User{MobileNumber: "+15551234567", OTP: "123456", OTPExpireAt: &expired})
	svc := newUserService(t, store)

	_, err := svc.VerifyOTP(context.Background(), "+15551234567", "123456")
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestVerifyOTPRejectsWhenNoneIssued(t *testing.T) {
	store := newFakeUserStore()
	store.add(&domain.User{MobileNumber: "+15551234567"})
	svc := newUserService(t, store)

	_, err := svc.VerifyOTP(context.Background(), "+15551234567", "123456")
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestVerifyOTPTokenCarriesProTier(t *testing.T) {
	store := newFakeUserStore()
	expires := time.Now().Add(5 * time.Minute)
	periodEnd := time.Now().Add(20 * 24 * time.Hour)
	user := store.add(&domain.User{
		MobileNumber: "+15551234567",
		OTP:          "123456",
		OTPExpireAt:  &expires,
		Subscription: &domain.Subscription{
			Tier:             domain.SubscriptionTierPro,
			Status:           domain.SubscriptionStatusActive,
			CurrentPeriodEnd: &periodEnd,
		},
	})
	svc := newUserService(t, store)

	token, err := svc.VerifyOTP(context.Background(), user.MobileNumber, "123456")
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager("test-secret")
	require.NoError(t, err)
	_, claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionTierPro, claims.Tier)
}

func TestChangePassword(t *testing.T) {
	store := newFakeUserStore()
	user := store.add(&domain.User{MobileNumber: "+15551234567"})
	svc := newUserService(t, store)

	err := svc.ChangePassword(context.Background(), user.ID, "newersecret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newersecret")))

	err = svc.ChangePassword(context.Background(), user.ID, "tiny")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestGenerateOTPFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		otp, err := generateOTP()
		require.NoError(t, err)
		require.Len(t, otp, 6)
		for _, c := range otp {
			assert.True(t, c >= '0' && c <= '9')
		}
	}
}
