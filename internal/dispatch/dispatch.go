// Package dispatch решает, какие runs и когда выполняет процесс воркера.
//
// Runs приходят двумя путями: событие run.pending из RabbitMQ и
// периодический обход БД по cron (подбирает runs, событие о которых
// потерялось или пришло, пока воркеры были выключены). Перед
// выполнением run закрепляется в БД, поэтому он выполняется один раз,
// сколько бы воркеров его ни увидели.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/mq"
)

// Default configuration values.
const (
	defaultMaxConcurrent = 4
	defaultSweepSchedule = "@every 1m"
	defaultSweepBatch    = 20
	defaultDrainTimeout  = 30 * time.Second
)

// Executor выполняет один run.
type Executor interface {
	Execute(ctx context.Context, runID uuid.UUID) (*domain.Run, error)
}

// RunClaimer закрепляет pending runs за процессом.
type RunClaimer interface {
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	ListUnclaimed(ctx context.Context, limit int) ([]domain.Run, error)
}

// FinishedPublisher сообщает об итоге run.
type FinishedPublisher interface {
	PublishRunFinished(ctx context.Context, runID uuid.UUID, state string) error
}

// Dispatcher запускает runs с ограничением параллельности.
type Dispatcher struct {
	executor  Executor
	runs      RunClaimer
	publisher FinishedPublisher
	conn      *mq.Connection

	maxConcurrent int
	schedule      cron.Schedule
	sweepBatch    int
	drainTimeout  time.Duration

	group    *errgroup.Group
	consumer *mq.Consumer
	cron     *cron.Cron

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	execCancel context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Dispatcher.
type Config struct {
	Executor Executor
	Runs     RunClaimer

	// Publisher (опционально) — событие run.finished после каждого run.
	Publisher FinishedPublisher

	// Conn (опционально) — без него работает только обход БД.
	Conn *mq.Connection

	MaxConcurrent int           // runs одновременно (default: 4)
	SweepSchedule string        // cron-выражение обхода БД (default: @every 1m)
	SweepBatch    int           // runs за один обход (default: 20)
	DrainTimeout  time.Duration // сколько Stop ждёт runs в работе (default: 30s)

	Logger *slog.Logger
}

// New создаёт Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	spec := cfg.SweepSchedule
	if spec == "" {
		spec = defaultSweepSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}

	sweepBatch := cfg.SweepBatch
	if sweepBatch <= 0 {
		sweepBatch = defaultSweepBatch
	}

	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	group := &errgroup.Group{}
	group.SetLimit(maxConcurrent)

	return &Dispatcher{
		executor:      cfg.Executor,
		runs:          cfg.Runs,
		publisher:     cfg.Publisher,
		conn:          cfg.Conn,
		maxConcurrent: maxConcurrent,
		schedule:      schedule,
		sweepBatch:    sweepBatch,
		drainTimeout:  drainTimeout,
		group:         group,
		logger:        logger,
	}, nil
}

// Start запускает consumer run.pending и обход БД по расписанию.
//
// Runs в работе не зависят от ctx: при остановке Stop даёт им
// DrainTimeout на завершение.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancelFunc = cancel

	execCtx, execCancel := context.WithCancel(context.WithoutCancel(ctx))
	d.execCancel = execCancel

	d.logger.Info("starting dispatcher",
		"max_concurrent", d.maxConcurrent,
		"sweep_batch", d.sweepBatch,
	)

	if d.conn != nil {
		d.consumer = mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsPending),
			Handler:  d.pendingHandler(execCtx),
			Prefetch: d.maxConcurrent,
		})

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("run consumer error", "error", err)
			}
		}()
	} else {
		d.logger.Warn("no RabbitMQ connection, relying on sweep only")
	}

	d.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	d.cron.Schedule(d.schedule, cron.FuncJob(func() {
		d.Sweep(ctx, execCtx)
	}))
	d.cron.Start()

	// Первый обход сразу: подхватываем runs, созданные пока воркер был выключен
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Sweep(ctx, execCtx)
	}()

	d.logger.Info("dispatcher started")
	return nil
}

// Stop прекращает приём runs и ждёт завершения runs в работе.
func (d *Dispatcher) Stop() {
	d.logger.Info("stopping dispatcher...")

	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	if d.consumer != nil {
		d.consumer.Stop()
	}
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	d.wg.Wait()

	done := make(chan struct{})
	go func() {
		d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.drainTimeout):
		d.logger.Warn("drain timeout reached, cancelling runs in progress", "timeout", d.drainTimeout)
		if d.execCancel != nil {
			d.execCancel()
		}
		<-done
	}

	if d.execCancel != nil {
		d.execCancel()
	}
	d.logger.Info("dispatcher stopped")
}

// Sweep находит незакреплённые pending runs и запускает их,
// пока есть свободные слоты.
func (d *Dispatcher) Sweep(ctx, execCtx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runs, err := d.runs.ListUnclaimed(ctx, d.sweepBatch)
	if err != nil {
		d.logger.Error("failed to list pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	d.logger.Debug("sweep found pending runs", "count", len(runs))

	started := 0
	for i := range runs {
		id := runs[i].ID
		if !d.group.TryGo(func() error {
			d.dispatch(execCtx, id)
			return nil
		}) {
			d.logger.Debug("all slots busy, deferring to next sweep", "remaining", len(runs)-i)
			break
		}
		started++
	}

	d.logger.Info("sweep completed", "pending", len(runs), "dispatched", started)
}

// pendingHandler обрабатывает run.pending. Блокируется, пока нет
// свободного слота, и подтверждает сообщение, когда run запущен.
func (d *Dispatcher) pendingHandler(execCtx context.Context) mq.Handler {
	return func(_ context.Context, delivery *mq.Delivery) error {
		payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
		if err != nil {
			return err
		}
		if payload.RunID == uuid.Nil {
			return fmt.Errorf("%w: run.pending without run_id", mq.ErrPermanent)
		}

		d.logger.Debug("received run.pending", "run_id", payload.RunID)

		d.group.Go(func() error {
			d.dispatch(execCtx, payload.RunID)
			return nil
		})
		return nil
	}
}

// dispatch закрепляет run, выполняет его и публикует итог.
func (d *Dispatcher) dispatch(ctx context.Context, runID uuid.UUID) {
	claimed, err := d.runs.Claim(ctx, runID)
	if err != nil {
		d.logger.Error("failed to claim run", "run_id", runID, "error", err)
		return
	}
	if !claimed {
		d.logger.Debug("run already claimed", "run_id", runID)
		return
	}

	run, err := d.executor.Execute(ctx, runID)
	if err != nil {
		d.logger.Error("run execution error", "run_id", runID, "error", err)
		return
	}

	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishRunFinished(context.WithoutCancel(ctx), runID, run.State.String()); err != nil {
		d.logger.Warn("failed to publish run.finished", "run_id", runID, "error", err)
	}
}

// Wait ждёт завершения всех запущенных runs.
func (d *Dispatcher) Wait() {
	d.group.Wait()
}
