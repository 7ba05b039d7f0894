package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownStatusMessage — ключ сообщения о статусе не распознан.
var ErrUnknownStatusMessage = errors.New("unknown status message")

// StatusMessage — ключ короткого сообщения о текущей активности воркера.
//
// В БД хранится ключ, человекочитаемый текст получается через Text().
// Сообщение перезаписывается на каждой фазе, никогда не дописывается.
type StatusMessage string

const (
	StatusPending        StatusMessage = "pending"
	StatusPreRun         StatusMessage = "pre-run"
	StatusConnecting     StatusMessage = "connecting"
	StatusServerFull     StatusMessage = "full"
	StatusInitializing   StatusMessage = "initializing"
	StatusUploading      StatusMessage = "uploading"
	StatusStarting       StatusMessage = "starting"
	StatusServerBusy     StatusMessage = "busy"
	StatusRunning        StatusMessage = "running"
	StatusWaiting        StatusMessage = "waiting"
	StatusGathering      StatusMessage = "gathering"
	StatusPostRun        StatusMessage = "post-run"
	StatusFinished       StatusMessage = "finished"
	StatusFailed         StatusMessage = "failed"
	StatusCancelling     StatusMessage = "cancelling"
	StatusCancelCallback StatusMessage = "cancel-callback"
	StatusCancelled      StatusMessage = "cancelled"
)

var statusTexts = map[StatusMessage]string{
	StatusPending:        "Pending",
	StatusPreRun:         "Running pre-run tasks",
	StatusConnecting:     "Connecting to execution server",
	StatusServerFull:     "Server full - please wait; run will start soon",
	StatusInitializing:   "Initializing new workflow run",
	StatusUploading:      "Uploading run inputs",
	StatusStarting:       "Starting run",
	StatusServerBusy:     "Server busy - please wait; run will start soon",
	StatusRunning:        "Running",
	StatusWaiting:        "Waiting for user input",
	StatusGathering:      "Gathering run outputs and log",
	StatusPostRun:        "Running post-run tasks",
	StatusFinished:       "Finished",
	StatusFailed:         "Failed",
	StatusCancelling:     "Cancelling",
	StatusCancelCallback: "Running post-cancel tasks",
	StatusCancelled:      "Cancelled",
}

// Text возвращает человекочитаемый текст сообщения.
func (m StatusMessage) Text() string {
	if text, ok := statusTexts[m]; ok {
		return text
	}
	return string(m)
}

// String возвращает ключ сообщения.
func (m StatusMessage) String() string {
	return string(m)
}

// ParseStatusMessage парсит ключ из БД.
func ParseStatusMessage(s string) (StatusMessage, error) {
	m := StatusMessage(s)
	if _, ok := statusTexts[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatusMessage, s)
	}
	return m, nil
}
