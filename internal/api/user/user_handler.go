package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mpereira-dev/tasknest/internal/api"
	"github.com/mpereira-dev/tasknest/internal/api/auth"
	"github.com/mpereira-dev/tasknest/internal/types"
)

type UserHandler struct {
	userService UserService
	maxUpload   int64
	logger      *slog.Logger
}

func NewUserHandler(userService UserService, maxUpload int64, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		maxUpload:   maxUpload,
		logger:      logger,
	}
}

// GetProfile handles GET /users/me.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to load profile", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, toProfileResponse(profile))
}

// UpdateProfile handles PATCH /users/me.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var params UpdateProfileParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.userService.UpdateProfile(r.Context(), userID, params)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			h.logger.ErrorContext(r.Context(), "Failed to update profile", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update profile")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, toProfileResponse(profile))
}

// UploadProfileImage handles POST /users/me/image with a multipart form
// carrying the file under the "image" field.
func (h *UserHandler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, `Form field "image" is required`)
		return
	}
	defer file.Close()

	url, err := h.userService.UploadProfileImage(r.Context(), userID, file)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			h.logger.ErrorContext(r.Context(), "Failed to store profile image", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to store profile image")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, UploadImageResponse{ProfileImageURL: url})
}

// DeleteAccount handles DELETE /users/me.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), userID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to delete account", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
