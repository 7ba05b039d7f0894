package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/repo"
)

// RunStore — операции с runs, которые нужны API.
type RunStore interface {
	CreateWithInputs(ctx context.Context, run *domain.Run, inputs []domain.InputPort) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	RequestCancel(ctx context.Context, id uuid.UUID) error
}

// PortStore — чтение портов run.
type PortStore interface {
	ListInputs(ctx context.Context, runID uuid.UUID) ([]domain.InputPort, error)
	ListOutputs(ctx context.Context, runID uuid.UUID) ([]domain.OutputPort, error)
}

// InteractionStore — взаимодействия и ответы пользователей.
type InteractionStore interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Interaction, error)
	GetByUniqueID(ctx context.Context, runID uuid.UUID, uniqueID string) (*domain.Interaction, error)
	SetReply(ctx context.Context, runID uuid.UUID, uniqueID, feed, value string) error
}

// WorkflowStore — документы workflow.
type WorkflowStore interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
}

// Publisher — уведомление воркеров о новых runs.
type Publisher interface {
	PublishRunPending(ctx context.Context, runID uuid.UUID) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs         RunStore
	ports        PortStore
	interactions InteractionStore
	workflows    WorkflowStore
	values       domain.ValueStore
	publisher    Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs         RunStore
	Ports        PortStore
	Interactions InteractionStore
	Workflows    WorkflowStore

	// Values — хранилище для длинных входных значений.
	Values domain.ValueStore

	// Publisher может быть nil: воркеры найдут run при следующем проходе по БД.
	Publisher Publisher
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runs:         cfg.Runs,
		ports:        cfg.Ports,
		interactions: cfg.Interactions,
		workflows:    cfg.Workflows,
		values:       cfg.Values,
		publisher:    cfg.Publisher,
		logger:       logger,
	}
}
