package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseInputs(t *testing.T) {
	inputs, err := parseInputs([]string{"name=World", "expr=a=b"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(inputs) != 2 || inputs[1].Name != "expr" || inputs[1].Value != "a=b" {
		t.Errorf("unexpected inputs: %+v", inputs)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseInputs([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestRunStartCmd(t *testing.T) {
	var got CreateRunRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/runs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data":{"id":"run-1","name":"hello","state":"pending","status_text":"Run pending"}}`)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	cmd := NewRunCmd(
		func() *Client { return NewClient(srv.URL) },
		func() *Output { return NewOutputTo(false, &stdout, &stderr) },
	)
	cmd.SetArgs([]string{"start", "wf-1", "--input", "name=World", "--name", "hello"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got.WorkflowID != "wf-1" || got.Name != "hello" || len(got.Inputs) != 1 {
		t.Errorf("unexpected request: %+v", got)
	}
	if !strings.Contains(stderr.String(), "run-1") {
		t.Errorf("expected run id in message, got %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "Run pending") {
		t.Errorf("expected status in table, got %q", stdout.String())
	}
}

func TestClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":{"code":"RUN_NOT_ACTIVE","message":"invalid state: run is not active","run_id":"run-1"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CancelRun("run-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Code != "RUN_NOT_ACTIVE" || apiErr.RunID != "run-1" {
		t.Errorf("unexpected API error: %+v", apiErr)
	}
	if msg := err.Error(); !strings.Contains(msg, "run is not active") || !strings.Contains(msg, "(run run-1)") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestRunShowCmd_Detail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs/run-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"data":{"id":"run-1","name":"hello","remote_id":"r-9","state":"failed",`+
			`"status_text":"Run failed","cancelled":true,"failure_message":"start: refused\ngoroutine 1"}}`)
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	cmd := NewRunCmd(
		func() *Client { return NewClient(srv.URL) },
		func() *Output { return NewOutputTo(false, &stdout, io.Discard) },
	)
	cmd.SetArgs([]string{"show", "run-1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got := stdout.String()
	for _, want := range []string{"Run:", "run-1", "Remote run:", "r-9", "Cancel requested:", "Failure:", "start: refused"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
	for _, absent := range []string{"Started:", "Results:", "goroutine"} {
		if strings.Contains(got, absent) {
			t.Errorf("unexpected %q in output:\n%s", absent, got)
		}
	}
}

func TestReplyCmd(t *testing.T) {
	var path string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"data":{"id":"n1","status":"accepted"}}`)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	cmd := NewRunCmd(
		func() *Client { return NewClient(srv.URL) },
		func() *Output { return NewOutputTo(false, &stdout, &stderr) },
	)
	cmd.SetArgs([]string{"reply", "run-1", "n1", "--feed", "f1", "--value", "yes"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if path != "/runs/run-1/proxy/n1" {
		t.Errorf("unexpected path %s", path)
	}
	if body["feed"] != "f1" || body["value"] != "yes" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestOutputsCmd_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"name":"out","depth":0,"value":"abc","truncated":true,"metadata":{"type":"text/plain"}}],"total":1}`)
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	cmd := NewRunCmd(
		func() *Client { return NewClient(srv.URL) },
		func() *Output { return NewOutputTo(true, &stdout, io.Discard) },
	)
	cmd.SetArgs([]string{"outputs", "run-1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var ports []PortResponse
	if err := json.Unmarshal(stdout.Bytes(), &ports); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(ports) != 1 || !ports[0].Truncated {
		t.Errorf("unexpected ports: %+v", ports)
	}
}
