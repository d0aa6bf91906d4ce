package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"gemchat/internal/auth"
	"gemchat/internal/domain"
)

// UserService is the slice of the service layer the auth handler calls.
type UserService interface {
	Signup(ctx context.Context, mobileNumber, password string) (*domain.User, error)
	SendOTP(ctx context.Context, mobileNumber string) (string, error)
	VerifyOTP(ctx context.Context, mobileNumber, otp string) (string, error)
	ForgotPasswordOTP(ctx context.Context, mobileNumber string) (string, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, newPassword string) error
	GetUserDetails(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// AuthHandler serves signup and the OTP login flow.
type AuthHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger}
}

type signupRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Password     string `json:"password,omitempty"`
}

// Signup handles POST /api/v1/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.users.Signup(r.Context(), req.MobileNumber, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":           user.ID,
		"mobileNumber": user.MobileNumber,
	})
}

type otpRequest struct {
	MobileNumber string `json:"mobileNumber"`
}

// SendOTP handles POST /api/v1/auth/send-otp. There is no SMS integration;
// the OTP rides back in the response body, as the client expects.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	otp, err := h.users.SendOTP(r.Context(), req.MobileNumber)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "OTP sent successfully",
		"otp":     otp,
	})
}

type verifyOTPRequest struct {
	MobileNumber string `json:"mobileNumber"`
	OTP          string `json:"otp"`
}

// VerifyOTP handles POST /api/v1/auth/verify-otp.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	token, err := h.users.VerifyOTP(r.Context(), req.MobileNumber, req.OTP)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	otp, err := h.users.ForgotPasswordOTP(r.Context(), req.MobileNumber)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset OTP sent",
		"otp":     otp,
	})
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// ChangePassword handles POST /api/v1/auth/change-password (authenticated).
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), user.ID, req.NewPassword); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// Me handles GET /api/v1/auth/me (authenticated).
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	details, err := h.users.GetUserDetails(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":                  details.ID,
		"mobileNumber":        details.MobileNumber,
		"createdAt":           details.CreatedAt,
		"updatedAt":           details.UpdatedAt,
		"currentSubscription": details.ActiveSubscription(),
	})
}
