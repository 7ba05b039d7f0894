package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/remote"
	"github.com/shaiso/Player/internal/telemetry"
)

// execution — состояние одного вызова Execute.
type execution struct {
	w      *Worker
	run    *domain.Run
	logger *slog.Logger

	// remote — удалённый run. Nil до создания и после удаления.
	remote remote.Run

	// tmp — временный каталог для лога и архива выходов.
	tmp string

	// phase — фаза, которая выполняется сейчас. Попадает в сообщение об ошибке.
	phase string
}

// phaseStep — одна фаза run.
type phaseStep struct {
	name string
	run  func(context.Context) error
}

// panicError — паника, перехваченная при выполнении run.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrRunPanicked, e.value)
}

func (e *panicError) Unwrap() error {
	return ErrRunPanicked
}

func (e *execution) execute(ctx context.Context) (*domain.Run, error) {
	telemetry.RunStarted()
	defer telemetry.RunDone()

	e.phase = "setup"
	tmp, err := os.MkdirTemp(e.w.tmpDir, "player-run-")
	if err != nil {
		return e.fail(ctx, fmt.Errorf("create temp dir: %w", err))
	}
	e.tmp = tmp
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", tmp, "error", err)
		}
	}()

	err = e.guarded(ctx)
	switch {
	case err == nil:
		return e.run, nil
	case errors.Is(err, errCancelled):
		return e.cancel(ctx)
	default:
		return e.fail(ctx, err)
	}
}

// guarded выполняет фазы run, превращая панику в ошибку.
func (e *execution) guarded(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return e.drive(ctx)
}

// drive проходит фазы run от pre-run до finished.
func (e *execution) drive(ctx context.Context) error {
	steps := []phaseStep{
		{"pre-run", e.preRun},
		{"create", e.create},
		{"upload", e.upload},
		{"start", e.start},
		{"poll", e.poll},
		{"gather", e.gather},
		{"post-run", e.postRun},
	}
	for _, step := range steps {
		e.phase = step.name
		if err := step.run(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *execution) preRun(ctx context.Context) error {
	cb := e.w.callbacks.PreRun
	if cb == nil {
		return nil
	}
	if err := e.setStatus(ctx, domain.StatusPreRun); err != nil {
		return err
	}
	if err := cb(ctx, e.run); err != nil {
		return fmt.Errorf("%w: pre-run: %w", ErrCallbackFailed, err)
	}
	return nil
}

// create создаёт удалённый run, ожидая освобождения ёмкости сервера.
func (e *execution) create(ctx context.Context) error {
	if err := e.setStatus(ctx, domain.StatusConnecting); err != nil {
		return err
	}

	wf, err := e.w.workflows.GetByID(ctx, e.run.WorkflowID)
	if err != nil {
		return fmt.Errorf("get workflow %s: %w", e.run.WorkflowID, err)
	}
	if e.run.Name == "" {
		e.run.Name = wf.Title
	}

	for {
		rr, err := e.w.server.CreateRun(ctx, wf.Document)
		if err == nil {
			e.remote = rr
			break
		}
		if !errors.Is(err, remote.ErrCapacityExceeded) {
			return fmt.Errorf("create remote run: %w", err)
		}
		if err := e.waitForCapacity(ctx, telemetry.OperationCreate, domain.StatusServerFull); err != nil {
			return err
		}
	}

	e.logger = telemetry.WithRemoteRunID(e.logger, e.remote.ID())

	if err := e.setStatus(ctx, domain.StatusInitializing); err != nil {
		return err
	}

	info, err := e.remote.Info(ctx)
	if err != nil {
		return fmt.Errorf("read remote run: %w", err)
	}
	if _, err := domain.StateFromRemote(info.Status); err != nil {
		return err
	}

	e.run.MarkInitialized(e.remote.ID(), e.timeOrNow(info.CreateTime), info.NotificationsURI, info.InteractionsURI)
	if err := e.save(ctx); err != nil {
		return err
	}

	e.logger.Info("remote run created", "remote_status", info.Status)
	return nil
}

// upload передаёт входы, учётные данные и имя run на сервер.
func (e *execution) upload(ctx context.Context) error {
	if err := e.setStatus(ctx, domain.StatusUploading); err != nil {
		return err
	}

	inputs, err := e.w.ports.ListInputs(ctx, e.run.ID)
	if err != nil {
		return fmt.Errorf("list inputs: %w", err)
	}

	for i := range inputs {
		in := &inputs[i]
		switch {
		case in.HasFile():
			if err := e.remote.SetInputFile(ctx, in.Name, e.w.blobs.Path(in.FileRef)); err != nil {
				return fmt.Errorf("upload input file %s: %w", in.Name, err)
			}
		case in.InlineValue != "":
			if err := e.remote.SetInputValue(ctx, in.Name, in.InlineValue); err != nil {
				return fmt.Errorf("upload input %s: %w", in.Name, err)
			}
		default:
			e.logger.Debug("skipping empty input", "port", in.Name)
		}
	}

	creds, err := e.w.credentials.List(ctx)
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}
	for _, c := range creds {
		if err := e.remote.AddPasswordCredential(ctx, c.URI, c.Login, c.Password); err != nil {
			return fmt.Errorf("add credential for %s: %w", c.URI, err)
		}
	}

	if e.run.Name != "" {
		if err := e.remote.SetName(ctx, e.run.Name); err != nil {
			return fmt.Errorf("set run name: %w", err)
		}
	}

	e.logger.Debug("inputs uploaded", "inputs", len(inputs), "credentials", len(creds))
	return nil
}

// start запускает удалённый run, ожидая освобождения ёмкости сервера.
func (e *execution) start(ctx context.Context) error {
	if err := e.setStatus(ctx, domain.StatusStarting); err != nil {
		return err
	}

	for {
		started, err := e.remote.Start(ctx)
		if err != nil && !errors.Is(err, remote.ErrCapacityExceeded) {
			return fmt.Errorf("start remote run: %w", err)
		}
		if started {
			break
		}
		if err := e.waitForCapacity(ctx, telemetry.OperationStart, domain.StatusServerBusy); err != nil {
			return err
		}
	}

	info, err := e.remote.Info(ctx)
	if err != nil {
		return fmt.Errorf("read remote run: %w", err)
	}

	e.run.MarkRunning(e.timeOrNow(info.StartTime))
	e.run.StatusMessage = domain.StatusRunning
	if err := e.save(ctx); err != nil {
		return err
	}

	e.logger.Info("remote run started")
	return nil
}

// poll опрашивает удалённый run до завершения.
func (e *execution) poll(ctx context.Context) error {
	for {
		finished, err := e.remote.Finished(ctx)
		if err != nil {
			return fmt.Errorf("poll remote run: %w", err)
		}
		if finished {
			return nil
		}

		if err := e.checkCancelled(ctx); err != nil {
			return err
		}

		waiting, err := e.handleNotifications(ctx)
		if err != nil {
			return err
		}

		status := domain.StatusRunning
		if waiting {
			status = domain.StatusWaiting
		}
		if err := e.setStatus(ctx, status); err != nil {
			return err
		}

		if err := e.w.sleep(ctx, e.w.pollInterval); err != nil {
			return err
		}
	}
}

// gather забирает лог и выходы, удаляет удалённый run и завершает его.
func (e *execution) gather(ctx context.Context) error {
	if err := e.setStatus(ctx, domain.StatusGathering); err != nil {
		return err
	}

	if err := e.fetchLog(ctx); err != nil && !errors.Is(err, remote.ErrNotFound) {
		return err
	}

	zipPath := filepath.Join(e.tmp, "outputs.zip")
	if err := e.remote.ZipOutput(ctx, zipPath); err != nil {
		return fmt.Errorf("download outputs: %w", err)
	}
	ref, err := e.w.blobs.PutFile(ctx, "outputs.zip", zipPath)
	if err != nil {
		return fmt.Errorf("store outputs: %w", err)
	}
	e.run.ResultsRef = ref

	if err := e.harvestOutputs(ctx); err != nil {
		return err
	}

	info, err := e.remote.Info(ctx)
	if err != nil {
		return fmt.Errorf("read remote run: %w", err)
	}
	e.run.MarkFinished(e.timeOrNow(info.FinishTime))

	if err := e.remote.Delete(ctx); err != nil {
		return fmt.Errorf("delete remote run: %w", err)
	}
	e.remote = nil

	e.run.MarkSucceeded()
	if err := e.save(ctx); err != nil {
		return err
	}

	telemetry.ObserveRunDuration(e.run.Duration().Seconds())
	return nil
}

// postRun вызывает post-run callback и фиксирует финальный статус.
func (e *execution) postRun(ctx context.Context) error {
	if cb := e.w.callbacks.PostRun; cb != nil {
		if err := e.setStatus(ctx, domain.StatusPostRun); err != nil {
			return err
		}
		if err := cb(ctx, e.run); err != nil {
			return fmt.Errorf("%w: post-run: %w", ErrCallbackFailed, err)
		}
	}

	if err := e.setStatus(ctx, domain.StatusFinished); err != nil {
		return err
	}

	telemetry.RecordRunFinished(e.run.State.String())
	e.logger.Info("run finished", "duration", e.run.Duration())
	return nil
}

// waitForCapacity проверяет отмену, сообщает о занятости сервера и ждёт.
func (e *execution) waitForCapacity(ctx context.Context, operation string, status domain.StatusMessage) error {
	if err := e.checkCancelled(ctx); err != nil {
		return err
	}
	if err := e.setStatus(ctx, status); err != nil {
		return err
	}

	telemetry.RecordCapacityWait(operation)
	e.logger.Info("server at capacity, waiting",
		"operation", operation,
		"retry_in", e.w.retryInterval,
	)

	return e.w.sleep(ctx, e.w.retryInterval)
}

// checkCancelled перечитывает флаг отмены из хранилища.
func (e *execution) checkCancelled(ctx context.Context) error {
	cancelled, err := e.w.runs.IsCancelled(ctx, e.run.ID)
	if err != nil {
		return fmt.Errorf("read cancel flag: %w", err)
	}
	if cancelled {
		e.run.Cancelled = true
		return errCancelled
	}
	return nil
}

// fetchLog скачивает лог удалённого run в blob-хранилище.
// Если лога нет — remote.ErrNotFound.
func (e *execution) fetchLog(ctx context.Context) error {
	logPath := filepath.Join(e.tmp, "log.txt")
	if err := e.remote.Log(ctx, logPath); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			e.logger.Debug("remote run has no log")
			return err
		}
		return fmt.Errorf("download log: %w", err)
	}

	ref, err := e.w.blobs.PutFile(ctx, "log.txt", logPath)
	if err != nil {
		return fmt.Errorf("store log: %w", err)
	}
	e.run.LogRef = ref
	return nil
}

// cancel — путь отмены: уборка на сервере, callback, состояние deleted.
func (e *execution) cancel(ctx context.Context) (*domain.Run, error) {
	ctx = context.WithoutCancel(ctx)
	e.logger.Info("cancellation requested")

	e.run.StatusMessage = domain.StatusCancelling
	if err := e.save(ctx); err != nil {
		e.logger.Warn("failed to save cancelling status", "error", err)
	}

	e.cleanupRemote(ctx)

	if cb := e.w.callbacks.Cancelled; cb != nil {
		e.run.StatusMessage = domain.StatusCancelCallback
		if err := e.save(ctx); err != nil {
			e.logger.Warn("failed to save cancel-callback status", "error", err)
		}
		if err := invokeSafely(ctx, cb, e.run); err != nil {
			e.logger.Warn("cancel callback failed", "error", err)
		}
	}

	e.run.MarkDeleted()
	e.run.StatusMessage = domain.StatusCancelled
	if err := e.save(ctx); err != nil {
		return e.run, err
	}

	telemetry.RecordRunFinished(e.run.State.String())
	e.logger.Info("run cancelled")
	return e.run, nil
}

// invokeSafely вызывает callback, превращая панику в ошибку.
func invokeSafely(ctx context.Context, cb Callback, run *domain.Run) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return cb(ctx, run)
}

// fail — путь ошибки: уборка на сервере, состояние failed.
//
// Сообщение об ошибке начинается с фазы, в которой run упал. Для паники
// к нему прикладывается стек места паники, для обычной ошибки стек самого fail.
func (e *execution) fail(ctx context.Context, cause error) (*domain.Run, error) {
	ctx = context.WithoutCancel(ctx)

	stack := debug.Stack()
	var pe *panicError
	if errors.As(cause, &pe) {
		stack = pe.stack
	}

	e.logger.Error("run failed", "phase", e.phase, "error", cause)

	e.cleanupRemote(ctx)

	e.run.MarkFailed(fmt.Sprintf("%s phase: %v\n%s", e.phase, cause, stack))
	e.run.StatusMessage = domain.StatusFailed
	if err := e.save(ctx); err != nil {
		return e.run, err
	}

	telemetry.RecordRunFinished(e.run.State.String())
	return e.run, nil
}

// cleanupRemote однократно пытается забрать лог и удалить удалённый run.
// Ошибки только логируются.
func (e *execution) cleanupRemote(ctx context.Context) {
	if e.remote == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("panic during remote cleanup", "panic", r)
		}
		e.remote = nil
	}()

	if e.tmp != "" && e.run.LogRef == "" {
		if err := e.fetchLog(ctx); err != nil && !errors.Is(err, remote.ErrNotFound) {
			e.logger.Warn("failed to fetch log during cleanup", "error", err)
		}
	}

	if err := e.remote.Delete(ctx); err != nil {
		e.logger.Warn("failed to delete remote run", "error", err)
	}
}

// setStatus выставляет и сохраняет статус перед следующим шагом.
func (e *execution) setStatus(ctx context.Context, status domain.StatusMessage) error {
	e.run.StatusMessage = status
	return e.save(ctx)
}

func (e *execution) save(ctx context.Context) error {
	if err := e.w.runs.Update(ctx, e.run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	e.logger.Debug("run saved",
		"state", e.run.State,
		"status", e.run.StatusMessage,
	)
	return nil
}

// timeOrNow возвращает t или текущее время, если сервер его не сообщил.
func (e *execution) timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return e.w.now()
	}
	return t
}
