package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Size  int    `json:"size"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID             string `json:"id"`
	WorkflowID     string `json:"workflow_id"`
	Name           string `json:"name"`
	RemoteID       string `json:"remote_id,omitempty"`
	State          string `json:"state"`
	Status         string `json:"status"`
	StatusText     string `json:"status_text"`
	FailureMessage string `json:"failure_message,omitempty"`
	Cancelled      bool   `json:"cancelled"`
	CreateTime     string `json:"create_time,omitempty"`
	StartTime      string `json:"start_time,omitempty"`
	FinishTime     string `json:"finish_time,omitempty"`
	ResultsRef     string `json:"results_ref,omitempty"`
	LogRef         string `json:"log_ref,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// PortResponse — входной или выходной порт из API.
type PortResponse struct {
	Name      string         `json:"name"`
	Depth     int            `json:"depth"`
	Value     string         `json:"value,omitempty"`
	Truncated bool           `json:"truncated,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// InteractionResponse — взаимодействие из API.
type InteractionResponse struct {
	ID        string `json:"id"`
	Replied   bool   `json:"replied"`
	HasPage   bool   `json:"has_page"`
	ProxyPath string `json:"proxy_path"`
	CreatedAt string `json:"created_at"`
}

// --- Request types ---

// InputRequest — значение входного порта.
type InputRequest struct {
	Name  string `json:"name"`
	Depth int    `json:"depth,omitempty"`
	Value string `json:"value"`
}

// CreateRunRequest — создание run.
type CreateRunRequest struct {
	WorkflowID string         `json:"workflow_id"`
	Name       string         `json:"name,omitempty"`
	Inputs     []InputRequest `json:"inputs,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	WorkflowID string
	State      string
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// APIError — ошибка из конверта {"error": ...} ответа API.
type APIError struct {
	Status        int    `json:"-"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	RunID         string `json:"run_id,omitempty"`
	InteractionID string `json:"interaction_id,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Code + ": " + e.Message
	switch {
	case e.InteractionID != "":
		msg += fmt.Sprintf(" (run %s, interaction %s)", e.RunID, e.InteractionID)
	case e.RunID != "":
		msg += fmt.Sprintf(" (run %s)", e.RunID)
	}
	return msg
}

// --- Client ---

// Client — HTTP-клиент для Player API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workflows ---

// CreateWorkflow загружает документ workflow.
func (c *Client) CreateWorkflow(title string, document []byte) (*WorkflowResponse, error) {
	body := map[string]string{"title": title, "document": string(document)}
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows", body, &wf)
	return &wf, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.WorkflowID != "" {
		params.Set("workflow_id", opts.WorkflowID)
	}
	if opts.State != "" {
		params.Set("state", opts.State)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// CreateRun создаёт pending run.
func (c *Client) CreateRun(req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// CancelRun запрашивает отмену run.
func (c *Client) CancelRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/cancel", nil, &run)
	return &run, err
}

// ListInputs возвращает входные порты run.
func (c *Client) ListInputs(runID string) ([]PortResponse, error) {
	var ports []PortResponse
	err := c.list("/api/v1/runs/"+runID+"/inputs", nil, &ports)
	return ports, err
}

// ListOutputs возвращает выходные порты run.
func (c *Client) ListOutputs(runID string) ([]PortResponse, error) {
	var ports []PortResponse
	err := c.list("/api/v1/runs/"+runID+"/outputs", nil, &ports)
	return ports, err
}

// --- Interactions ---

// ListInteractions возвращает взаимодействия run.
func (c *Client) ListInteractions(runID string) ([]InteractionResponse, error) {
	var items []InteractionResponse
	err := c.list("/api/v1/runs/"+runID+"/interactions", nil, &items)
	return items, err
}

// Reply оставляет ответ на взаимодействие. Воркер перешлёт его серверу.
func (c *Client) Reply(runID, interactionID, feed, value string) error {
	body := map[string]string{"feed": feed, "value": value}
	return c.post("/runs/"+runID+"/proxy/"+url.PathEscape(interactionID), body, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	er.Error.Status = resp.StatusCode
	return &er.Error
}
