package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Player/internal/repo"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodeRunNotActive   ErrorCode = "RUN_NOT_ACTIVE"
	ErrCodeAlreadyReplied ErrorCode = "ALREADY_REPLIED"
	ErrCodePageNotReady   ErrorCode = "PAGE_NOT_READY"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
//
// RunID и InteractionID заполняются, когда ошибка относится
// к конкретному run или взаимодействию.
type ErrorDetail struct {
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	RunID         string    `json:"run_id,omitempty"`
	InteractionID string    `json:"interaction_id,omitempty"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// Accepted отправляет 202: запрос принят, выполнит его воркер.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	ErrorWith(w, status, ErrorDetail{Code: code, Message: message})
}

// ErrorWith отправляет ответ с заполненными деталями ошибки.
func ErrorWith(w http.ResponseWriter, status int, detail ErrorDetail) {
	JSON(w, status, ErrorResponse{Error: detail})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict отправляет ошибку 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InvalidState отправляет ошибку 422.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleRepoError преобразует ошибку репозитория в HTTP ответ.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, notFoundMsg)
		return true
	}

	if errors.Is(err, repo.ErrAlreadyExists) {
		Conflict(w, err.Error())
		return true
	}

	if errors.Is(err, repo.ErrInvalidState) {
		InvalidState(w, err.Error())
		return true
	}

	InternalError(w, logger, err)
	return true
}

// runErrorMapping — как ошибки хранилища отображаются для одного run.
type runErrorMapping struct {
	runID         uuid.UUID
	interactionID string
	notFound      string

	// invalidState — код для repo.ErrInvalidState (run не активен,
	// на взаимодействие уже ответили).
	invalidState ErrorCode
}

// handleRunError — HandleRepoError для ошибок конкретного run:
// в ответ попадают run_id и, если есть, interaction_id.
func handleRunError(w http.ResponseWriter, logger *slog.Logger, err error, m runErrorMapping) bool {
	if err == nil {
		return false
	}

	detail := ErrorDetail{
		RunID:         m.runID.String(),
		InteractionID: m.interactionID,
		Message:       err.Error(),
	}

	switch {
	case errors.Is(err, repo.ErrNotFound):
		detail.Code = ErrCodeNotFound
		detail.Message = m.notFound
		ErrorWith(w, http.StatusNotFound, detail)
	case errors.Is(err, repo.ErrInvalidState):
		detail.Code = m.invalidState
		if detail.Code == "" {
			detail.Code = ErrCodeInvalidState
		}
		ErrorWith(w, http.StatusUnprocessableEntity, detail)
	default:
		logger.Error("internal error", "error", err, "run_id", m.runID, "interaction_id", m.interactionID)
		Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
	return true
}
