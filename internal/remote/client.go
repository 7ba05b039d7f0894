package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const defaultHTTPTimeout = 5 * time.Minute

// workflowContentType — MIME-тип документа workflow при создании run.
const workflowContentType = "application/vnd.taverna.t2flow+xml"

// Client — HTTP-клиент REST API сервера выполнения.
//
// Все запросы подписываются HTTP Basic из ClientConfig.Credentials.
// Таймаут запроса задаётся транспортом, отдельные вызовы его не меняют.
type Client struct {
	base   *url.URL
	creds  Credentials
	http   *http.Client
	logger *slog.Logger
}

// ClientConfig — конфигурация Client.
type ClientConfig struct {
	// BaseURL — адрес REST API сервера, например http://localhost:8080/taverna/rest.
	BaseURL string

	Credentials Credentials

	// HTTPClient (опционально; если nil — клиент с таймаутом Timeout)
	HTTPClient *http.Client
	Timeout    time.Duration // default: 5m

	Logger *slog.Logger
}

// NewClient создаёт Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:   base,
		creds:  cfg.Credentials,
		http:   httpClient,
		logger: logger,
	}, nil
}

// CreateRun создаёт run: POST {base}/runs.
func (c *Client) CreateRun(ctx context.Context, workflow []byte) (Run, error) {
	endpoint := c.base.JoinPath("runs").String()

	resp, err := c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(workflow), workflowContentType, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, ErrCapacityExceeded
	default:
		return nil, statusError(resp)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: create run: no Location header", ErrRemote)
	}
	runURL, err := resp.Request.URL.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: create run: bad Location %q: %v", ErrRemote, location, err)
	}

	id := path.Base(strings.TrimRight(runURL.Path, "/"))
	c.logger.Debug("remote run created", "remote_run_id", id)

	return &httpRun{client: c, id: id, url: runURL}, nil
}

// Read читает ресурс сервера по абсолютному адресу.
func (c *Client) Read(ctx context.Context, uri, mime string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, uri, nil, "", mime)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

// do выполняет запрос с Basic-авторизацией.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRemote, err)
	}
	if c.creds.Username != "" {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRemote, method, endpoint, err)
	}
	return resp, nil
}

// statusError читает тело ответа в StatusError.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Method: resp.Request.Method,
		URL:    resp.Request.URL.String(),
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

// expectStatus проверяет код ответа и закрывает тело.
func expectStatus(resp *http.Response, codes ...int) error {
	defer resp.Body.Close()
	for _, code := range codes {
		if resp.StatusCode == code {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
	}
	return statusError(resp)
}

// httpRun — run на сервере, адресуемый по URL.
type httpRun struct {
	client *Client
	id     string
	url    *url.URL
}

func (r *httpRun) ID() string {
	return r.id
}

func (r *httpRun) endpoint(elem ...string) string {
	return r.url.JoinPath(elem...).String()
}

// Info читает описание run: GET {run}.
func (r *httpRun) Info(ctx context.Context) (*RunInfo, error) {
	var info RunInfo
	if err := r.getJSON(ctx, r.url.String(), &info); err != nil {
		return nil, fmt.Errorf("run info: %w", err)
	}
	if info.ID == "" {
		info.ID = r.id
	}
	return &info, nil
}

func (r *httpRun) SetName(ctx context.Context, name string) error {
	return r.putText(ctx, r.endpoint("name"), name)
}

func (r *httpRun) SetInputValue(ctx context.Context, port, value string) error {
	return r.putText(ctx, r.endpoint("input", port), value)
}

// SetInputFile загружает содержимое локального файла как значение порта.
func (r *httpRun) SetInputFile(ctx context.Context, port, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	resp, err := r.client.do(ctx, http.MethodPut, r.endpoint("input", port, "file"), f, "application/octet-stream", "")
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// AddPasswordCredential регистрирует логин и пароль для сервиса.
func (r *httpRun) AddPasswordCredential(ctx context.Context, uri, login, password string) error {
	body, err := json.Marshal(map[string]string{
		"serviceUri": uri,
		"username":   login,
		"password":   password,
	})
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	resp, err := r.client.do(ctx, http.MethodPost, r.endpoint("security", "credentials"), bytes.NewReader(body), "application/json", "")
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// Start запускает run: PUT {run}/status = Operating.
// 503 означает, что сервер не может запустить ещё один run.
func (r *httpRun) Start(ctx context.Context) (bool, error) {
	resp, err := r.client.do(ctx, http.MethodPut, r.endpoint("status"), strings.NewReader("Operating"), "text/plain", "")
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		return false, nil
	}
	if err := expectStatus(resp, http.StatusOK, http.StatusAccepted, http.StatusNoContent); err != nil {
		return false, err
	}
	return true, nil
}

func (r *httpRun) Status(ctx context.Context) (string, error) {
	data, err := r.getBytes(ctx, r.endpoint("status"), "text/plain")
	if err != nil {
		return "", fmt.Errorf("run status: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *httpRun) Finished(ctx context.Context) (bool, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(status, "Finished"), nil
}

func (r *httpRun) Notifications(ctx context.Context, kind NotificationKind) ([]Notification, error) {
	endpoint := r.url.JoinPath("notifications")
	q := endpoint.Query()
	q.Set("kind", string(kind))
	endpoint.RawQuery = q.Encode()

	var notes []Notification
	if err := r.getJSON(ctx, endpoint.String(), &notes); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notes, nil
}

// Reply отправляет ответ на уведомление.
func (r *httpRun) Reply(ctx context.Context, notificationID, feed, value string) error {
	body, err := json.Marshal(map[string]string{"feed": feed, "value": value})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	resp, err := r.client.do(ctx, http.MethodPost, r.endpoint("notifications", notificationID, "reply"), bytes.NewReader(body), "application/json", "")
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

func (r *httpRun) Log(ctx context.Context, dest string) error {
	return r.download(ctx, r.endpoint("log"), "text/plain", dest)
}

func (r *httpRun) ZipOutput(ctx context.Context, dest string) error {
	return r.download(ctx, r.endpoint("output", "zip"), "application/zip", dest)
}

func (r *httpRun) OutputPorts(ctx context.Context) ([]OutputPort, error) {
	var ports []OutputPort
	if err := r.getJSON(ctx, r.endpoint("output", "ports"), &ports); err != nil {
		return nil, fmt.Errorf("list output ports: %w", err)
	}
	return ports, nil
}

// OutputValue читает значение порта, при limit > 0 — через Range.
func (r *httpRun) OutputValue(ctx context.Context, port string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint("output", "ports", port), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRemote, err)
	}
	if r.client.creds.Username != "" {
		req.SetBasicAuth(r.client.creds.Username, r.client.creds.Password)
	}
	if limit > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", limit-1))
	}

	resp, err := r.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: read output %s: %v", ErrRemote, port, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, statusError(resp)
	}

	var body io.Reader = resp.Body
	if limit > 0 {
		// Сервер может проигнорировать Range и вернуть всё целиком.
		body = io.LimitReader(resp.Body, limit)
	}
	return io.ReadAll(body)
}

// Delete удаляет run. Уже удалённый run — не ошибка.
func (r *httpRun) Delete(ctx context.Context) error {
	resp, err := r.client.do(ctx, http.MethodDelete, r.url.String(), nil, "", "")
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusOK, http.StatusAccepted, http.StatusNoContent, http.StatusNotFound)
}

// --- Helpers ---

func (r *httpRun) putText(ctx context.Context, endpoint, value string) error {
	resp, err := r.client.do(ctx, http.MethodPut, endpoint, strings.NewReader(value), "text/plain", "")
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

func (r *httpRun) getBytes(ctx context.Context, endpoint, accept string) ([]byte, error) {
	resp, err := r.client.do(ctx, http.MethodGet, endpoint, nil, "", accept)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (r *httpRun) getJSON(ctx context.Context, endpoint string, v any) error {
	data, err := r.getBytes(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrRemote, endpoint, err)
	}
	return nil
}

// download сохраняет тело ответа в файл dest.
func (r *httpRun) download(ctx context.Context, endpoint, accept, dest string) error {
	resp, err := r.client.do(ctx, http.MethodGet, endpoint, nil, "", accept)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return f.Close()
}
