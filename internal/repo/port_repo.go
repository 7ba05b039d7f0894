package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Player/internal/domain"
)

// PortRepo — репозиторий входных и выходных портов runs.
//
// Имя порта уникально в пределах (run, вид порта) без учёта регистра.
type PortRepo struct {
	pool *pgxpool.Pool
}

// NewPortRepo создаёт новый PortRepo.
func NewPortRepo(pool *pgxpool.Pool) *PortRepo {
	return &PortRepo{pool: pool}
}

// CreateInput создаёт входной порт.
func (r *PortRepo) CreateInput(ctx context.Context, in *domain.InputPort) error {
	query := `
		INSERT INTO run_ports (id, run_id, kind, name, depth, value, file_ref)
		VALUES ($1, $2, 'input', $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		in.ID,
		in.RunID,
		in.Name,
		in.Depth,
		nullString(in.InlineValue),
		nullString(in.FileRef),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: input %q", ErrAlreadyExists, in.Name)
		}
		return fmt.Errorf("insert input: %w", err)
	}
	return nil
}

// UpdateInput сохраняет значение входного порта.
func (r *PortRepo) UpdateInput(ctx context.Context, in *domain.InputPort) error {
	query := `
		UPDATE run_ports SET depth = $2, value = $3, file_ref = $4
		WHERE id = $1 AND kind = 'input'
	`
	result, err := r.pool.Exec(ctx, query, in.ID, in.Depth, nullString(in.InlineValue), nullString(in.FileRef))
	if err != nil {
		return fmt.Errorf("update input: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListInputs возвращает входные порты run, отсортированные по имени.
func (r *PortRepo) ListInputs(ctx context.Context, runID uuid.UUID) ([]domain.InputPort, error) {
	query := `
		SELECT id, run_id, name, depth, value, file_ref
		FROM run_ports
		WHERE run_id = $1 AND kind = 'input'
		ORDER BY lower(name) ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	defer rows.Close()

	var inputs []domain.InputPort
	for rows.Next() {
		var in domain.InputPort
		var value, fileRef *string
		if err := rows.Scan(&in.ID, &in.RunID, &in.Name, &in.Depth, &value, &fileRef); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		in.InlineValue = deref(value)
		in.FileRef = deref(fileRef)
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// CreateOutputs создаёт выходные порты run в одной транзакции.
func (r *PortRepo) CreateOutputs(ctx context.Context, runID uuid.UUID, outputs []domain.OutputPort) error {
	if len(outputs) == 0 {
		return nil
	}

	query := `
		INSERT INTO run_ports (id, run_id, kind, name, depth, value, metadata)
		VALUES ($1, $2, 'output', $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for i := range outputs {
		out := &outputs[i]
		if out.ID == uuid.Nil {
			out.ID = uuid.New()
		}
		out.RunID = runID

		metadata, err := json.Marshal(out.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", out.Name, err)
		}
		batch.Queue(query, out.ID, runID, out.Name, out.Depth, nullString(out.Value), metadata)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: output port", ErrAlreadyExists)
		}
		return fmt.Errorf("insert outputs: %w", err)
	}
	return nil
}

// ListOutputs возвращает выходные порты run, отсортированные по имени.
func (r *PortRepo) ListOutputs(ctx context.Context, runID uuid.UUID) ([]domain.OutputPort, error) {
	query := `
		SELECT id, run_id, name, depth, value, metadata
		FROM run_ports
		WHERE run_id = $1 AND kind = 'output'
		ORDER BY lower(name) ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()

	var outputs []domain.OutputPort
	for rows.Next() {
		var out domain.OutputPort
		var value *string
		var metadata []byte
		if err := rows.Scan(&out.ID, &out.RunID, &out.Name, &out.Depth, &value, &metadata); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out.Value = deref(value)
		if metadata != nil {
			if err := json.Unmarshal(metadata, &out.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}
