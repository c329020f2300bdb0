package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mpereira-dev/tasknest/config"
	"github.com/mpereira-dev/tasknest/internal/api"
	"github.com/mpereira-dev/tasknest/internal/types"
)

type AuthHandler struct {
	authService AuthService
	cfg         *config.Config
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
		logger:      logger,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrConflict):
			api.ErrorResponse(w, r, http.StatusConflict, "Email already registered")
		default:
			h.logger.ErrorContext(r.Context(), "Registration failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to register user")
		}
		return
	}

	resp := RegisterResponse{
		User:    sanitizeUser(result.User),
		Message: "User registered. Please verify your email.",
	}
	if h.cfg.IsDevelopment() {
		resp.VerificationToken = result.VerificationToken
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, resp)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrUnauthenticated):
			// Same payload for unknown email and wrong password.
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
		default:
			h.logger.ErrorContext(r.Context(), "Login failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Authentication failed")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		User:         sanitizeUser(result.User),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	accessToken, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrMissingToken):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Refresh token required")
		case errors.Is(err, types.ErrRevokedToken):
			api.ErrorResponse(w, r, http.StatusForbidden, "Refresh token revoked")
		case errors.Is(err, types.ErrInvalidToken):
			api.ErrorResponse(w, r, http.StatusForbidden, "Invalid refresh token")
		default:
			h.logger.ErrorContext(r.Context(), "Token refresh failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to refresh token")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, RefreshResponse{AccessToken: accessToken})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, types.ErrMissingToken) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Refresh token required")
			return
		}
		h.logger.ErrorContext(r.Context(), "Logout failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to logout")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, Response{Success: true, Message: "Logged out successfully"})
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	issue, err := h.authService.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			h.logger.ErrorContext(r.Context(), "Password reset request failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to request password reset")
		}
		return
	}

	resp := ForgotPasswordResponse{Message: "Password reset link generated"}
	if h.cfg.IsDevelopment() {
		resp.ResetToken = issue.Token
		resp.ResetURL = fmt.Sprintf("%s/reset-password?token=%s", h.cfg.FrontendURL, issue.Token)
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrInvalidToken):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid or expired token")
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			h.logger.ErrorContext(r.Context(), "Password reset failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to reset password")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, Response{Success: true, Message: "Password reset successful"})
}

// VerifyEmail handles POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), req.Token); err != nil {
		switch {
		case errors.Is(err, types.ErrAlreadyVerified):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Email already verified")
		case errors.Is(err, types.ErrMissingToken), errors.Is(err, types.ErrInvalidToken):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid token")
		default:
			h.logger.ErrorContext(r.Context(), "Email verification failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to verify email")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, Response{Success: true, Message: "Email verified successfully"})
}
