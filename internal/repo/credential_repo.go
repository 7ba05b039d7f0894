package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Player/internal/domain"
)

// CredentialRepo — учётные данные сервисов, общие для всех runs.
type CredentialRepo struct {
	pool *pgxpool.Pool
}

// NewCredentialRepo создаёт новый CredentialRepo.
func NewCredentialRepo(pool *pgxpool.Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Create сохраняет учётные данные.
func (r *CredentialRepo) Create(ctx context.Context, cred *domain.ServiceCredential) error {
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO service_credentials (id, uri, login, password) VALUES ($1, $2, $3, $4)`,
		cred.ID, cred.URI, cred.Login, cred.Password,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// List возвращает все учётные данные.
func (r *CredentialRepo) List(ctx context.Context) ([]domain.ServiceCredential, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, uri, login, password FROM service_credentials ORDER BY uri`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []domain.ServiceCredential
	for rows.Next() {
		var c domain.ServiceCredential
		if err := rows.Scan(&c.ID, &c.URI, &c.Login, &c.Password); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// WorkflowRepo — документы workflow хост-приложения.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

// Create сохраняет документ workflow.
func (r *WorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	if wf.ID == uuid.Nil {
		wf.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO workflows (id, title, document) VALUES ($1, $2, $3)`,
		wf.ID, nullString(wf.Title), wf.Document,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetByID возвращает workflow с документом.
func (r *WorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	var wf domain.Workflow
	var title *string

	err := r.pool.QueryRow(ctx, `SELECT id, title, document FROM workflows WHERE id = $1`, id).
		Scan(&wf.ID, &title, &wf.Document)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	wf.Title = deref(title)
	return &wf, nil
}
