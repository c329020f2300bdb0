package todo

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mpereira-dev/tasknest/internal/api"
	"github.com/mpereira-dev/tasknest/internal/api/auth"
	"github.com/mpereira-dev/tasknest/internal/types"
)

type TodoHandler struct {
	todoService TodoService
	logger      *slog.Logger
}

func NewTodoHandler(todoService TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{
		todoService: todoService,
		logger:      logger,
	}
}

// todoID pulls and validates the {todoID} route parameter. A malformed id
// gets the same 404 as a todo the caller does not own.
func todoID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "todoID")
	if uuid.Validate(id) != nil {
		return "", false
	}
	return id, true
}

// CreateTodo handles POST /todos.
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var params types.CreateTodoParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	td, err := h.todoService.CreateTodo(r.Context(), userID, params)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to create todo", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create todo")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, td)
}

// GetTodos handles GET /todos.
func (h *TodoHandler) GetTodos(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	todos, err := h.todoService.GetTodos(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list todos", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list todos")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, todos)
}

// GetTodo handles GET /todos/{todoID}.
func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := todoID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "Todo not found")
		return
	}

	td, err := h.todoService.GetTodo(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Todo not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to get todo", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to get todo")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, td)
}

// UpdateTodo handles PATCH /todos/{todoID}.
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := todoID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "Todo not found")
		return
	}

	var params types.UpdateTodoParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	td, err := h.todoService.UpdateTodo(r.Context(), userID, id, params)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "Todo not found")
		default:
			h.logger.ErrorContext(r.Context(), "Failed to update todo", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update todo")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, td)
}

// DeleteTodo handles DELETE /todos/{todoID}.
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := todoID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "Todo not found")
		return
	}

	if err := h.todoService.DeleteTodo(r.Context(), userID, id); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Todo not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to delete todo", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete todo")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
