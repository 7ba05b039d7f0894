package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Player/internal/domain"
)

// Workflow DTOs

// CreateWorkflowRequest — запрос на загрузку документа workflow.
type CreateWorkflowRequest struct {
	Title    string `json:"title,omitempty"`
	Document string `json:"document"`
}

// WorkflowResponse — ответ с workflow (без документа).
type WorkflowResponse struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title,omitempty"`
	Size  int       `json:"size"`
}

// WorkflowFromDomain конвертирует domain.Workflow в WorkflowResponse.
func WorkflowFromDomain(wf domain.Workflow) WorkflowResponse {
	return WorkflowResponse{ID: wf.ID, Title: wf.Title, Size: len(wf.Document)}
}

// Run DTOs

// InputRequest — значение входного порта.
type InputRequest struct {
	Name  string `json:"name"`
	Depth int    `json:"depth,omitempty"`
	Value string `json:"value"`
}

// CreateRunRequest — запрос на создание run.
type CreateRunRequest struct {
	WorkflowID uuid.UUID      `json:"workflow_id"`
	Name       string         `json:"name,omitempty"`
	Inputs     []InputRequest `json:"inputs,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID  `json:"id"`
	WorkflowID     uuid.UUID  `json:"workflow_id"`
	Name           string     `json:"name"`
	RemoteID       string     `json:"remote_id,omitempty"`
	State          string     `json:"state"`
	Status         string     `json:"status"`
	StatusText     string     `json:"status_text"`
	FailureMessage string     `json:"failure_message,omitempty"`
	Cancelled      bool       `json:"cancelled"`
	CreateTime     *time.Time `json:"create_time,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	FinishTime     *time.Time `json:"finish_time,omitempty"`
	ResultsRef     string     `json:"results_ref,omitempty"`
	LogRef         string     `json:"log_ref,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		WorkflowID:     r.WorkflowID,
		Name:           r.Name,
		RemoteID:       r.RemoteID,
		State:          r.State.String(),
		Status:         r.StatusMessage.String(),
		StatusText:     r.StatusMessage.Text(),
		FailureMessage: r.FailureMessage,
		Cancelled:      r.Cancelled,
		CreateTime:     r.CreateTime,
		StartTime:      r.StartTime,
		FinishTime:     r.FinishTime,
		ResultsRef:     r.ResultsRef,
		LogRef:         r.LogRef,
		CreatedAt:      r.CreatedAt,
	}
}

// Port DTOs

// InputResponse — входной порт.
type InputResponse struct {
	Name      string `json:"name"`
	Depth     int    `json:"depth"`
	Value     string `json:"value,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// InputFromDomain конвертирует domain.InputPort в InputResponse.
// Для длинных значений отдаётся inline-префикс.
func InputFromDomain(p domain.InputPort) InputResponse {
	return InputResponse{
		Name:      p.Name,
		Depth:     p.Depth,
		Value:     p.InlineValue,
		Truncated: p.HasFile(),
	}
}

// OutputResponse — выходной порт.
type OutputResponse struct {
	Name      string         `json:"name"`
	Depth     int            `json:"depth"`
	Value     string         `json:"value,omitempty"`
	Truncated bool           `json:"truncated,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// OutputFromDomain конвертирует domain.OutputPort в OutputResponse.
func OutputFromDomain(p domain.OutputPort) OutputResponse {
	return OutputResponse{
		Name:      p.Name,
		Depth:     p.Depth,
		Value:     p.Value,
		Truncated: p.IsTruncated(),
		Metadata:  p.Metadata,
	}
}

// Interaction DTOs

// InteractionResponse — взаимодействие run.
type InteractionResponse struct {
	ID        string    `json:"id"`
	Replied   bool      `json:"replied"`
	HasPage   bool      `json:"has_page"`
	ProxyPath string    `json:"proxy_path"`
	CreatedAt time.Time `json:"created_at"`
}

// InteractionFromDomain конвертирует domain.Interaction в InteractionResponse.
func InteractionFromDomain(i domain.Interaction) InteractionResponse {
	return InteractionResponse{
		ID:        i.UniqueID,
		Replied:   i.Replied,
		HasPage:   i.HasPage(),
		ProxyPath: "/runs/" + i.RunID.String() + "/proxy/" + i.UniqueID,
		CreatedAt: i.CreatedAt,
	}
}

// ReplyRequest — ответ пользователя на взаимодействие.
type ReplyRequest struct {
	Feed  string `json:"feed"`
	Value string `json:"value"`
}
