package todo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/mpereira-dev/tasknest/internal/api"
	"github.com/mpereira-dev/tasknest/internal/types"
)

var _ TodoRepo = (*PostgresTodoRepo)(nil)

// TodoRepo persists todos. Every operation is scoped to the owning user;
// another user's todo is indistinguishable from a missing one.
type TodoRepo interface {
	CreateTodo(ctx context.Context, userID string, params types.CreateTodoParams) (*types.Todo, error)
	GetTodos(ctx context.Context, userID string) ([]*types.Todo, error)
	GetTodo(ctx context.Context, userID, todoID string) (*types.Todo, error)
	UpdateTodo(ctx context.Context, userID, todoID string, params types.UpdateTodoParams) (*types.Todo, error)
	DeleteTodo(ctx context.Context, userID, todoID string) error
}

type PostgresTodoRepo struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresTodoRepo(pgpool api.PgxPool, logger *slog.Logger) *PostgresTodoRepo {
	return &PostgresTodoRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const todoColumns = `id, user_id, title, description, completed, due_date, created_at, updated_at`

func scanTodo(row pgx.Row) (*types.Todo, error) {
	var td types.Todo
	err := row.Scan(
		&td.ID, &td.UserID, &td.Title, &td.Description,
		&td.Completed, &td.DueDate, &td.CreatedAt, &td.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scan todo: %w", err)
	}
	return &td, nil
}

func (r *PostgresTodoRepo) CreateTodo(ctx context.Context, userID string, params types.CreateTodoParams) (*types.Todo, error) {
	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO todos (user_id, title, description, due_date)
         VALUES ($1, $2, $3, $4)
         RETURNING `+todoColumns,
		userID, params.Title, params.Description, params.DueDate)
	return scanTodo(row)
}

func (r *PostgresTodoRepo) GetTodos(ctx context.Context, userID string) ([]*types.Todo, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]*types.Todo, 0)
	for rows.Next() {
		td, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, td)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (r *PostgresTodoRepo) GetTodo(ctx context.Context, userID, todoID string) (*types.Todo, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`, todoID, userID)
	return scanTodo(row)
}

func (r *PostgresTodoRepo) UpdateTodo(ctx context.Context, userID, todoID string, params types.UpdateTodoParams) (*types.Todo, error) {
	// COALESCE keeps columns the client did not send; only completed and the
	// nullable fields accept explicit values.
	row := r.pgpool.QueryRow(ctx,
		`UPDATE todos
         SET title       = COALESCE($1, title),
             description = COALESCE($2, description),
             completed   = COALESCE($3, completed),
             due_date    = COALESCE($4, due_date),
             updated_at  = now()
         WHERE id = $5 AND user_id = $6
         RETURNING `+todoColumns,
		params.Title, params.Description, params.Completed, params.DueDate, todoID, userID)
	return scanTodo(row)
}

func (r *PostgresTodoRepo) DeleteTodo(ctx context.Context, userID, todoID string) error {
	tag, err := r.pgpool.Exec(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`, todoID, userID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
