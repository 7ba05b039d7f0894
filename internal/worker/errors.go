package worker

import "errors"

// Ошибки воркера.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run уже не в состоянии pending.
	ErrRunNotPending = errors.New("run is not pending")

	// ErrCallbackFailed — pre-run или post-run callback вернул ошибку.
	ErrCallbackFailed = errors.New("callback failed")

	// ErrUnknownCallback — callback с таким именем не зарегистрирован.
	ErrUnknownCallback = errors.New("unknown callback")

	// ErrRunPanicked — выполнение run завершилось паникой.
	ErrRunPanicked = errors.New("run panicked")

	// errCancelled — внешний процесс запросил отмену run.
	// Не ошибка: сигнал перейти на путь отмены.
	errCancelled = errors.New("run cancelled")
)
