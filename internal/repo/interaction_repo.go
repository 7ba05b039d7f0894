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

const interactionColumns = `
	id, run_id, unique_id, page, replied, feed_reply, output_value, created_at, updated_at`

// InteractionRepo — репозиторий взаимодействий.
type InteractionRepo struct {
	pool *pgxpool.Pool
}

// NewInteractionRepo создаёт новый InteractionRepo.
func NewInteractionRepo(pool *pgxpool.Pool) *InteractionRepo {
	return &InteractionRepo{pool: pool}
}

// FindOrCreate возвращает взаимодействие для уведомления uniqueID,
// создавая его при первом обращении. Безопасно при конкурентных вызовах.
func (r *InteractionRepo) FindOrCreate(ctx context.Context, runID uuid.UUID, uniqueID string) (*domain.Interaction, error) {
	now := time.Now()
	insert := `
		INSERT INTO interactions (id, run_id, unique_id, replied, created_at, updated_at)
		VALUES ($1, $2, $3, false, $4, $4)
		ON CONFLICT (run_id, unique_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, uuid.New(), runID, uniqueID, now); err != nil {
		return nil, fmt.Errorf("insert interaction: %w", err)
	}
	return r.GetByUniqueID(ctx, runID, uniqueID)
}

// GetByUniqueID возвращает взаимодействие по идентификатору уведомления.
func (r *InteractionRepo) GetByUniqueID(ctx context.Context, runID uuid.UUID, uniqueID string) (*domain.Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions WHERE run_id = $1 AND unique_id = $2`
	return scanInteraction(r.pool.QueryRow(ctx, query, runID, uniqueID))
}

// ListByRun возвращает все взаимодействия run.
func (r *InteractionRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions WHERE run_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// Update сохраняет страницу и флаг ответа, записанные воркером.
//
// Страница пишется только один раз, флаг ответа не сбрасывается.
// Поля ответа пользователя не трогаются — их пишет SetReply.
func (r *InteractionRepo) Update(ctx context.Context, i *domain.Interaction) error {
	query := `
		UPDATE interactions
		SET page = COALESCE(page, $2), replied = replied OR $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, i.ID, nullString(i.Page), i.Replied, time.Now())
	if err != nil {
		return fmt.Errorf("update interaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReply сохраняет ответ пользователя, который воркер перешлёт серверу.
func (r *InteractionRepo) SetReply(ctx context.Context, runID uuid.UUID, uniqueID, feed, value string) error {
	query := `
		UPDATE interactions
		SET feed_reply = $3, output_value = $4, updated_at = $5
		WHERE run_id = $1 AND unique_id = $2 AND NOT replied
	`
	result, err := r.pool.Exec(ctx, query, runID, uniqueID, feed, value, time.Now())
	if err != nil {
		return fmt.Errorf("set interaction reply: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByUniqueID(ctx, runID, uniqueID); err != nil {
			return err
		}
		return fmt.Errorf("%w: interaction already replied", ErrInvalidState)
	}
	return nil
}

func scanInteraction(row pgx.Row) (*domain.Interaction, error) {
	var i domain.Interaction
	var page, feed, value *string

	err := row.Scan(&i.ID, &i.RunID, &i.UniqueID, &page, &i.Replied, &feed, &value, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan interaction: %w", err)
	}

	i.Page = deref(page)
	i.FeedReply = deref(feed)
	i.OutputValue = deref(value)
	return &i, nil
}
