package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Player/internal/domain"
)

// runColumns — колонки runs в порядке scanRun.
const runColumns = `
	id, workflow_id, name, remote_id, state, status_message, failure_message,
	create_time, start_time, finish_time, proxy_notifications, proxy_interactions,
	cancelled, results_ref, log_ref, claimed_at, created_at`

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, workflow_id, name, state, status_message, cancelled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.WorkflowID,
		run.Name,
		run.State.String(),
		run.StatusMessage.String(),
		run.Cancelled,
		run.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// CreateWithInputs создаёт run вместе с входными портами в одной транзакции,
// чтобы воркер никогда не увидел pending run без входов.
func (r *RunRepo) CreateWithInputs(ctx context.Context, run *domain.Run, inputs []domain.InputPort) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO runs (id, workflow_id, name, state, status_message, cancelled, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, run.ID, run.WorkflowID, run.Name, run.State.String(), run.StatusMessage.String(), run.Cancelled, run.CreatedAt)
		if err != nil {
			return err
		}

		for _, in := range inputs {
			_, err := tx.Exec(ctx, `
				INSERT INTO run_ports (id, run_id, kind, name, depth, value, file_ref)
				VALUES ($1, $2, 'input', $3, $4, $5, $6)
			`, in.ID, run.ID, in.Name, in.Depth, nullString(in.InlineValue), nullString(in.FileRef))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert run with inputs: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::uuid IS NULL OR workflow_id = $1)
		  AND ($2::text IS NULL OR state = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	var state *string
	if filter.State != "" {
		s := filter.State.String()
		state = &s
	}

	rows, err := r.pool.Query(ctx, query, filter.WorkflowID, state, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return collectRuns(rows)
}

// Update сохраняет поля, которые пишет воркер.
//
// Флаг cancelled не перезаписывается: его выставляет внешний процесс
// через RequestCancel, и запись воркера не должна его потерять.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE runs
		SET remote_id = $2, state = $3, status_message = $4, failure_message = $5,
		    create_time = $6, start_time = $7, finish_time = $8,
		    proxy_notifications = $9, proxy_interactions = $10,
		    results_ref = $11, log_ref = $12
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		nullString(run.RemoteID),
		run.State.String(),
		run.StatusMessage.String(),
		nullString(run.FailureMessage),
		run.CreateTime,
		run.StartTime,
		run.FinishTime,
		nullString(run.ProxyNotifications),
		nullString(run.ProxyInteractions),
		nullString(run.ResultsRef),
		nullString(run.LogRef),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsCancelled читает флаг отмены напрямую из БД.
func (r *RunRepo) IsCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	var cancelled bool
	err := r.pool.QueryRow(ctx, `SELECT cancelled FROM runs WHERE id = $1`, id).Scan(&cancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("read cancelled flag: %w", err)
	}
	return cancelled, nil
}

// RequestCancel выставляет флаг отмены для активного run.
func (r *RunRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE runs SET cancelled = true
		WHERE id = $1 AND state IN ('pending', 'initialized', 'running')
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("cancel run: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: run is not active", ErrInvalidState)
	}
	return nil
}

// Claim атомарно закрепляет pending run за вызывающим воркером.
// Возвращает false, если run уже взят или не в pending.
func (r *RunRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE runs SET claimed_at = $2
		WHERE id = $1 AND state = 'pending' AND claimed_at IS NULL
	`
	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListUnclaimed возвращает pending runs, которые ещё никто не взял.
func (r *RunRepo) ListUnclaimed(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE state = 'pending' AND claimed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclaimed runs: %w", err)
	}
	return collectRuns(rows)
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	WorkflowID *uuid.UUID
	State      domain.RunState
	Limit      int
	Offset     int
}

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var state, status string
	var remoteID, failure, notifications, interactions, results, logRef *string

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.Name,
		&remoteID,
		&state,
		&status,
		&failure,
		&run.CreateTime,
		&run.StartTime,
		&run.FinishTime,
		&notifications,
		&interactions,
		&run.Cancelled,
		&results,
		&logRef,
		&run.ClaimedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if run.State, err = domain.ParseRunState(state); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if run.StatusMessage, err = domain.ParseStatusMessage(status); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}

	run.RemoteID = deref(remoteID)
	run.FailureMessage = deref(failure)
	run.ProxyNotifications = deref(notifications)
	run.ProxyInteractions = deref(interactions)
	run.ResultsRef = deref(results)
	run.LogRef = deref(logRef)

	return &run, nil
}

// collectRuns сканирует все строки и закрывает rows.
func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
