package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/proxy"
	"github.com/shaiso/Player/internal/remote"
	"github.com/shaiso/Player/internal/repo"
	"github.com/shaiso/Player/internal/telemetry"
)

// Default configuration values.
const (
	DefaultPollInterval  = 5 * time.Second
	DefaultRetryInterval = 10 * time.Second
)

// RunStore — хранилище runs.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	Update(ctx context.Context, run *domain.Run) error

	// IsCancelled читает флаг отмены из хранилища, а не из памяти.
	IsCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}

// PortStore — хранилище портов.
type PortStore interface {
	ListInputs(ctx context.Context, runID uuid.UUID) ([]domain.InputPort, error)
	CreateOutputs(ctx context.Context, runID uuid.UUID, outputs []domain.OutputPort) error
}

// InteractionStore — хранилище взаимодействий.
type InteractionStore interface {
	FindOrCreate(ctx context.Context, runID uuid.UUID, uniqueID string) (*domain.Interaction, error)
	Update(ctx context.Context, i *domain.Interaction) error
}

// CredentialStore — учётные данные сервисов.
type CredentialStore interface {
	List(ctx context.Context) ([]domain.ServiceCredential, error)
}

// WorkflowStore — документы workflow.
type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
}

// BlobStore — хранилище файлов: значения входов, лог, архив выходов.
type BlobStore interface {
	domain.ValueStore
	PutFile(ctx context.Context, name, src string) (string, error)
}

// Worker ведёт run через весь удалённый жизненный цикл.
//
// Один вызов Execute обрабатывает один run синхронно. Параллельность
// есть только между runs: Worker безопасен для конкурентных вызовов
// Execute с разными run ID.
type Worker struct {
	runs         RunStore
	ports        PortStore
	interactions InteractionStore
	credentials  CredentialStore
	workflows    WorkflowStore
	blobs        BlobStore

	server   remote.Server
	rewriter *proxy.Rewriter

	pollInterval  time.Duration
	retryInterval time.Duration
	tmpDir        string
	callbacks     Callbacks

	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	logger *slog.Logger
}

// Config — конфигурация Worker.
type Config struct {
	// Stores
	Runs         RunStore
	Ports        PortStore
	Interactions InteractionStore
	Credentials  CredentialStore
	Workflows    WorkflowStore
	Blobs        BlobStore

	// Server — удалённый сервер выполнения.
	Server remote.Server

	// Rewriter переписывает адреса в страницах взаимодействий.
	// Если nil — страницы сохраняются как есть.
	Rewriter *proxy.Rewriter

	PollInterval  time.Duration // интервал опроса run (default: 5s)
	RetryInterval time.Duration // пауза при нехватке ёмкости сервера (default: 10s)

	// TmpDir — каталог для временных загрузок. Пустой — os.TempDir().
	TmpDir string

	Callbacks Callbacks

	// Sleep и Now подменяются в тестах.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		runs:          cfg.Runs,
		ports:         cfg.Ports,
		interactions:  cfg.Interactions,
		credentials:   cfg.Credentials,
		workflows:     cfg.Workflows,
		blobs:         cfg.Blobs,
		server:        cfg.Server,
		rewriter:      cfg.Rewriter,
		pollInterval:  pollInterval,
		retryInterval: retryInterval,
		tmpDir:        cfg.TmpDir,
		callbacks:     cfg.Callbacks,
		sleep:         sleep,
		now:           now,
		logger:        logger,
	}
}

// Execute выполняет pending run до терминального состояния.
//
// Ошибки удалённого сервера и callbacks не возвращаются: run
// сохраняется в failed, отмена — в deleted. Ошибка возвращается,
// только если run не удалось загрузить или сохранить его итог.
func (w *Worker) Execute(ctx context.Context, runID uuid.UUID) (*domain.Run, error) {
	run, err := w.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	if run.State != domain.RunStatePending {
		return run, fmt.Errorf("%w: %s is %s", ErrRunNotPending, runID, run.State)
	}

	e := &execution{
		w:      w,
		run:    run,
		logger: telemetry.WithRunID(w.logger, run.ID.String()),
	}
	return e.execute(ctx)
}

// sleepContext ждёт d или отмены контекста.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
