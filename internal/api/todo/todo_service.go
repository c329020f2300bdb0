package todo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mpereira-dev/tasknest/internal/types"
)

var _ TodoService = (*TodoServiceImpl)(nil)

// TodoService applies validation on top of the todo store.
type TodoService interface {
	CreateTodo(ctx context.Context, userID string, params types.CreateTodoParams) (*types.Todo, error)
	GetTodos(ctx context.Context, userID string) ([]*types.Todo, error)
	GetTodo(ctx context.Context, userID, todoID string) (*types.Todo, error)
	UpdateTodo(ctx context.Context, userID, todoID string, params types.UpdateTodoParams) (*types.Todo, error)
	DeleteTodo(ctx context.Context, userID, todoID string) error
}

type TodoServiceImpl struct {
	logger *slog.Logger
	repo   TodoRepo
}

func NewTodoService(repo TodoRepo, logger *slog.Logger) *TodoServiceImpl {
	return &TodoServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *TodoServiceImpl) CreateTodo(ctx context.Context, userID string, params types.CreateTodoParams) (*types.Todo, error) {
	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return nil, fmt.Errorf("%w: title is required", types.ErrValidation)
	}

	td, err := s.repo.CreateTodo(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Todo created",
		slog.String("user_id", userID), slog.String("todo_id", td.ID.String()))
	return td, nil
}

func (s *TodoServiceImpl) GetTodos(ctx context.Context, userID string) ([]*types.Todo, error) {
	return s.repo.GetTodos(ctx, userID)
}

func (s *TodoServiceImpl) GetTodo(ctx context.Context, userID, todoID string) (*types.Todo, error) {
	return s.repo.GetTodo(ctx, userID, todoID)
}

func (s *TodoServiceImpl) UpdateTodo(ctx context.Context, userID, todoID string, params types.UpdateTodoParams) (*types.Todo, error) {
	if params.Title != nil {
		trimmed := strings.TrimSpace(*params.Title)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: title must not be empty", types.ErrValidation)
		}
		params.Title = &trimmed
	}
	return s.repo.UpdateTodo(ctx, userID, todoID, params)
}

func (s *TodoServiceImpl) DeleteTodo(ctx context.Context, userID, todoID string) error {
	return s.repo.DeleteTodo(ctx, userID, todoID)
}
