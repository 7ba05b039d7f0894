package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownState — строка состояния не входит в допустимый набор.
var ErrUnknownState = errors.New("unknown run state")

// RunState — состояние run.
//
// Жизненный цикл:
//
//	pending → initialized → running → finished
//	        ↘ failed (из любого состояния при необработанной ошибке)
//	initialized | running → deleted (после отмены)
//
// Отмена — это флаг Run.Cancelled, а не состояние, пока её не увидит воркер.
type RunState string

const (
	// RunStatePending — run создан, воркер ещё не обращался к серверу.
	RunStatePending RunState = "pending"

	// RunStateInitialized — run создан на удалённом сервере, но не запущен.
	RunStateInitialized RunState = "initialized"

	// RunStateRunning — run выполняется на удалённом сервере.
	RunStateRunning RunState = "running"

	// RunStateFinished — run завершён, результаты собраны.
	RunStateFinished RunState = "finished"

	// RunStateFailed — run завершился с ошибкой.
	RunStateFailed RunState = "failed"

	// RunStateDeleted — run отменён и удалён с сервера.
	RunStateDeleted RunState = "deleted"
)

// runStates — допустимые состояния в порядке жизненного цикла.
var runStates = []RunState{
	RunStatePending,
	RunStateInitialized,
	RunStateRunning,
	RunStateFinished,
	RunStateFailed,
	RunStateDeleted,
}

// RunStates возвращает все допустимые состояния.
func RunStates() []RunState {
	out := make([]RunState, len(runStates))
	copy(out, runStates)
	return out
}

// String возвращает строковое представление RunState.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal возвращает true, если из состояния больше нет переходов.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateFinished, RunStateFailed, RunStateDeleted:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если run можно отменить.
func (s RunState) IsActive() bool {
	switch s {
	case RunStatePending, RunStateInitialized, RunStateRunning:
		return true
	default:
		return false
	}
}

// ParseRunState парсит строку из БД в RunState.
// Регистр не важен, неизвестные значения отклоняются.
func ParseRunState(s string) (RunState, error) {
	token := RunState(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range runStates {
		if st == token {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// StateFromRemote переводит статус удалённого сервера в локальное состояние.
//
//	Initialized → initialized
//	Operating   → running
//	Stopped     → finished
//	Finished    → finished
func StateFromRemote(status string) (RunState, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "initialized":
		return RunStateInitialized, nil
	case "operating":
		return RunStateRunning, nil
	case "stopped", "finished":
		return RunStateFinished, nil
	default:
		return "", fmt.Errorf("%w: remote status %q", ErrUnknownState, status)
	}
}
