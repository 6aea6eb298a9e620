package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plastinin/identtracker/internal/domain"
)

const taskColumns = `id, file_id, algorithm_key, params, state, progress, stage, message, error, result,
	result_key, profile, created_at, updated_at, last_polled_at, completed_at`

// TaskRepository реализация репозитория отслеживаемых задач для PostgreSQL
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository создаёт новый экземпляр TaskRepository
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// Save создаёт или обновляет снимок задачи. Финальное состояние в БД
// не перезаписывается другим: в этом случае возвращается domain.ErrInvalidTransition.
func (r *TaskRepository) Save(ctx context.Context, task *domain.TrackedTask) error {
	params, err := json.Marshal(task.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	var result []byte
	if task.Result != nil {
		if result, err = json.Marshal(task.Result); err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	var errorMsg *string
	if task.ErrorMessage != "" {
		errorMsg = &task.ErrorMessage
	}

	query := `
		INSERT INTO tracked_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			progress = EXCLUDED.progress,
			stage = EXCLUDED.stage,
			message = EXCLUDED.message,
			error = EXCLUDED.error,
			result = EXCLUDED.result,
			result_key = EXCLUDED.result_key,
			updated_at = EXCLUDED.updated_at,
			last_polled_at = EXCLUDED.last_polled_at,
			completed_at = EXCLUDED.completed_at
		WHERE NOT (tracked_tasks.state = ANY($17)) OR tracked_tasks.state = EXCLUDED.state
	`

	tag, err := r.pool.Exec(ctx, query,
		task.ID,
		task.FileID,
		task.AlgorithmKey,
		params,
		task.State,
		task.Progress,
		task.Stage,
		task.Message,
		errorMsg,
		result,
		task.ResultKey,
		task.Profile,
		task.CreatedAt,
		task.UpdatedAt,
		task.LastPolledAt,
		task.CompletedAt,
		terminalStates(),
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	// Строка не обновлена: задача уже в другом финальном состоянии
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s cannot become %s: %w", task.ID, task.State, domain.ErrInvalidTransition)
	}

	return nil
}

func terminalStates() []string {
	states := domain.TerminalStates()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	return names
}

// GetByID возвращает задачу по ID
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.TrackedTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tracked_tasks WHERE id = $1`

	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// Delete удаляет задачу из БД
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM tracked_tasks WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

// List возвращает список задач с пагинацией и фильтрацией
func (r *TaskRepository) List(ctx context.Context, filter domain.TaskFilter, pagination domain.Pagination) (*domain.TaskListResult, error) {
	baseQuery, args := buildFilter(filter)
	argIndex := len(args) + 1

	// Запрос на подсчёт общего количества
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, taskColumns, baseQuery, argIndex, argIndex+1)

	args = append(args, pagination.Limit(), pagination.Offset())

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*domain.TrackedTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return &domain.TaskListResult{
		Tasks:      tasks,
		Total:      total,
		Pagination: pagination,
	}, nil
}

// buildFilter собирает FROM/WHERE часть запроса списка
func buildFilter(filter domain.TaskFilter) (string, []any) {
	query := `FROM tracked_tasks WHERE 1=1`
	args := []any{}

	if filter.State != nil {
		args = append(args, *filter.State)
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if filter.Profile != "" {
		args = append(args, filter.Profile)
		query += fmt.Sprintf(" AND profile = $%d", len(args))
	}

	return query, args
}

func scanTask(row pgx.Row) (*domain.TrackedTask, error) {
	task := &domain.TrackedTask{}
	var (
		params   []byte
		result   []byte
		errorMsg *string // Указатель для NULL
	)

	err := row.Scan(
		&task.ID,
		&task.FileID,
		&task.AlgorithmKey,
		&params,
		&task.State,
		&task.Progress,
		&task.Stage,
		&task.Message,
		&errorMsg,
		&result,
		&task.ResultKey,
		&task.Profile,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.LastPolledAt,
		&task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorMsg != nil {
		task.ErrorMessage = *errorMsg
	}
	if err := decodeJSONColumns(task, params, result); err != nil {
		return nil, err
	}

	return task, nil
}

// decodeJSONColumns разбирает JSONB колонки params и result
func decodeJSONColumns(task *domain.TrackedTask, params, result []byte) error {
	if len(params) > 0 {
		if err := json.Unmarshal(params, &task.Params); err != nil {
			return fmt.Errorf("failed to decode params: %w", err)
		}
	}
	if task.Params == nil {
		task.Params = map[string]any{}
	}

	if len(result) > 0 {
		task.Result = &domain.Result{}
		if err := json.Unmarshal(result, task.Result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
		if task.Result.TaskID == "" {
			task.Result.TaskID = task.ID
		}
	}

	return nil
}
