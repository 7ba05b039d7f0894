package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/repo"
)

// CreateWorkflow сохраняет документ workflow.
// POST /api/v1/workflows
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Document) == "" {
		BadRequest(w, "document is required")
		return
	}

	wf := &domain.Workflow{
		ID:       uuid.New(),
		Title:    req.Title,
		Document: []byte(req.Document),
	}
	if err := h.workflows.Create(r.Context(), wf); HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, WorkflowFromDomain(*wf))
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?workflow_id=...&state=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
		Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
	}

	if idStr := r.URL.Query().Get("workflow_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			BadRequest(w, "invalid workflow_id")
			return
		}
		filter.WorkflowID = &id
	}

	if state := r.URL.Query().Get("state"); state != "" {
		s, err := domain.ParseRunState(state)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		filter.State = s
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun создаёт pending run с входами и сообщает о нём воркерам.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.WorkflowID == uuid.Nil {
		BadRequest(w, "workflow_id is required")
		return
	}
	if err := validateInputs(req.Inputs); err != nil {
		BadRequest(w, err.Error())
		return
	}

	ctx := r.Context()

	wf, err := h.workflows.GetByID(ctx, req.WorkflowID)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	name := req.Name
	if name == "" {
		name = wf.Title
	}
	run := domain.NewRun(wf.ID, name)

	inputs := make([]domain.InputPort, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		port := domain.NewInputPort(run.ID, in.Name, in.Depth)
		if err := port.SetValue(ctx, h.values, in.Value); err != nil {
			h.dropInputFiles(r, inputs)
			InternalError(w, h.logger, err)
			return
		}
		inputs = append(inputs, *port)
	}

	if err := h.runs.CreateWithInputs(ctx, run, inputs); err != nil {
		h.dropInputFiles(r, inputs)
		HandleRepoError(w, h.logger, err, "")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRunPending(ctx, run.ID); err != nil {
			h.logger.Warn("failed to publish run.pending", "run_id", run.ID, "error", err)
		}
	}

	Created(w, RunFromDomain(*run))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if handleRunError(w, h.logger, err, runErrorMapping{runID: id, notFound: "run not found"}) {
		return
	}

	Success(w, RunFromDomain(*run))
}

// CancelRun выставляет флаг отмены. Сам run останавливает воркер.
// POST /api/v1/runs/{id}/cancel
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	m := runErrorMapping{runID: id, notFound: "run not found", invalidState: ErrCodeRunNotActive}
	if err := h.runs.RequestCancel(r.Context(), id); handleRunError(w, h.logger, err, m) {
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if handleRunError(w, h.logger, err, m) {
		return
	}

	Accepted(w, RunFromDomain(*run))
}

// ListRunInputs возвращает входные порты run.
// GET /api/v1/runs/{id}/inputs
func (h *Handler) ListRunInputs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.existingRun(w, r)
	if !ok {
		return
	}

	inputs, err := h.ports.ListInputs(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]InputResponse, len(inputs))
	for i, in := range inputs {
		result[i] = InputFromDomain(in)
	}

	List(w, result, len(result))
}

// ListRunOutputs возвращает выходные порты run.
// GET /api/v1/runs/{id}/outputs
func (h *Handler) ListRunOutputs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.existingRun(w, r)
	if !ok {
		return
	}

	outputs, err := h.ports.ListOutputs(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]OutputResponse, len(outputs))
	for i, out := range outputs {
		result[i] = OutputFromDomain(out)
	}

	List(w, result, len(result))
}

// runID разбирает {id} из пути. При ошибке ответ уже отправлен.
func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

// existingRun разбирает {id} и проверяет, что run существует.
func (h *Handler) existingRun(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := runID(w, r)
	if !ok {
		return uuid.Nil, false
	}
	_, err := h.runs.GetByID(r.Context(), id)
	if handleRunError(w, h.logger, err, runErrorMapping{runID: id, notFound: "run not found"}) {
		return uuid.Nil, false
	}
	return id, true
}

// dropInputFiles удаляет файлы уже обработанных входов, если run не создан.
func (h *Handler) dropInputFiles(r *http.Request, inputs []domain.InputPort) {
	for _, in := range inputs {
		if !in.HasFile() {
			continue
		}
		if err := h.values.Delete(r.Context(), in.FileRef); err != nil {
			h.logger.Warn("failed to drop input file", "ref", in.FileRef, "error", err)
		}
	}
}

// validateInputs проверяет имена входов: непустые и уникальные без учёта регистра.
func validateInputs(inputs []InputRequest) error {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return errors.New("input name is required")
		}
		if in.Depth < 0 {
			return fmt.Errorf("input %s: depth must not be negative", name)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("duplicate input %s", name)
		}
		seen[key] = true
	}
	return nil
}

// parseIntDefault парсит неотрицательное число или возвращает def.
func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
