package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer — минимальный сервер выполнения для тестов клиента.
type fakeServer struct {
	mu sync.Mutex

	capacityLeft int // сколько раз ещё вернуть 503 на создание
	busyLeft     int // сколько раз ещё вернуть 503 на старт

	status  string
	inputs  map[string]string
	creds   []map[string]string
	replies map[string]map[string]string
	deleted bool
	hasLog  bool
	output  string
	name    string

	authFailures int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		status:  "Initialized",
		inputs:  make(map[string]string),
		replies: make(map[string]map[string]string),
		hasLog:  true,
		output:  strings.Repeat("0123456789", 100),
	}
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /rest/runs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.capacityLeft > 0 {
			f.capacityLeft--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != workflowContentType {
			t.Errorf("unexpected content type %q", ct)
		}
		w.Header().Set("Location", "/rest/runs/r1")
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("GET /rest/runs/r1", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":               "r1",
			"status":           f.status,
			"createTime":       "2026-01-01T12:00:00Z",
			"notificationsUri": "http://srv/rest/runs/r1/notifications",
			"interactionsUri":  "http://srv/rest/runs/r1/interactions",
		})
	})

	mux.HandleFunc("PUT /rest/runs/r1/name", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.name = string(body)
	})

	mux.HandleFunc("PUT /rest/runs/r1/input/{port}", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.inputs[r.PathValue("port")] = string(body)
	})

	mux.HandleFunc("PUT /rest/runs/r1/input/{port}/file", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.inputs[r.PathValue("port")] = "file:" + string(body)
	})

	mux.HandleFunc("POST /rest/runs/r1/security/credentials", func(w http.ResponseWriter, r *http.Request) {
		var cred map[string]string
		json.NewDecoder(r.Body).Decode(&cred)
		f.creds = append(f.creds, cred)
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("PUT /rest/runs/r1/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.busyLeft > 0 {
			f.busyLeft--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.status = string(body)
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /rest/runs/r1/status", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, f.status)
	})

	mux.HandleFunc("GET /rest/runs/r1/notifications", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("kind") != "requests" {
			t.Errorf("unexpected kind %q", r.URL.Query().Get("kind"))
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "n1", "uri": "http://srv/rest/runs/r1/interactions/n1.html", "hasReply": false},
			{"id": "n2", "uri": "http://srv/rest/runs/r1/interactions/n2.html", "hasReply": true},
		})
	})

	mux.HandleFunc("POST /rest/runs/r1/notifications/{id}/reply", func(w http.ResponseWriter, r *http.Request) {
		var reply map[string]string
		json.NewDecoder(r.Body).Decode(&reply)
		f.replies[r.PathValue("id")] = reply
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /rest/runs/r1/log", func(w http.ResponseWriter, _ *http.Request) {
		if !f.hasLog {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "log line")
	})

	mux.HandleFunc("GET /rest/runs/r1/output/zip", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "PK-zip")
	})

	mux.HandleFunc("GET /rest/runs/r1/output/ports", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"name": "out", "depth": 0, "type": "text/plain", "size": len(f.output)},
		})
	})

	mux.HandleFunc("GET /rest/runs/r1/output/ports/{name}", func(w http.ResponseWriter, r *http.Request) {
		// Range игнорируется — клиент должен обрезать сам.
		io.WriteString(w, f.output)
	})

	mux.HandleFunc("DELETE /rest/runs/r1", func(w http.ResponseWriter, _ *http.Request) {
		f.deleted = true
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /interaction.html", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/html" {
			t.Errorf("expected Accept text/html, got %q", r.Header.Get("Accept"))
		}
		io.WriteString(w, "<html>page</html>")
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "taverna" || pass != "secret" {
			f.authFailures++
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func newTestClient(t *testing.T, f *fakeServer) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:     srv.URL + "/rest/",
		Credentials: Credentials{Username: "taverna", Password: "secret"},
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

// --- Tests ---

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{BaseURL: "/rest"}); err == nil {
		t.Error("expected error for relative server url")
	}
}

func TestClient_CreateRun_CapacityExceeded(t *testing.T) {
	f := newFakeServer()
	f.capacityLeft = 1
	client, _ := newTestClient(t, f)

	_, err := client.CreateRun(context.Background(), []byte("<workflow/>"))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	run, err := client.CreateRun(context.Background(), []byte("<workflow/>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.ID() != "r1" {
		t.Errorf("expected id r1, got %q", run.ID())
	}
}

func TestClient_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFakeServer()
	f.busyLeft = 1
	client, _ := newTestClient(t, f)

	run, err := client.CreateRun(ctx, []byte("<workflow/>"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	info, err := run.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Status != "Initialized" {
		t.Errorf("expected Initialized, got %q", info.Status)
	}
	if info.InteractionsURI != "http://srv/rest/runs/r1/interactions" {
		t.Errorf("unexpected interactions uri %q", info.InteractionsURI)
	}
	if info.CreateTime.IsZero() {
		t.Error("create time should be parsed")
	}

	if err := run.SetName(ctx, "my run"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := run.SetInputValue(ctx, "in1", "hello"); err != nil {
		t.Fatalf("set input: %v", err)
	}

	path := filepath.Join(t.TempDir(), "value.txt")
	os.WriteFile(path, []byte("from file"), 0o644)
	if err := run.SetInputFile(ctx, "in2", path); err != nil {
		t.Fatalf("set input file: %v", err)
	}

	if err := run.AddPasswordCredential(ctx, "http://svc", "bob", "pw"); err != nil {
		t.Fatalf("add credential: %v", err)
	}

	started, err := run.Start(ctx)
	if err != nil || started {
		t.Fatalf("expected busy server (false, nil), got (%v, %v)", started, err)
	}
	started, err = run.Start(ctx)
	if err != nil || !started {
		t.Fatalf("expected started, got (%v, %v)", started, err)
	}

	f.status = "Finished"
	finished, err := run.Finished(ctx)
	if err != nil || !finished {
		t.Fatalf("expected finished, got (%v, %v)", finished, err)
	}

	if err := run.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if f.name != "my run" {
		t.Errorf("name not set: %q", f.name)
	}
	if f.inputs["in1"] != "hello" || f.inputs["in2"] != "file:from file" {
		t.Errorf("unexpected inputs %v", f.inputs)
	}
	if len(f.creds) != 1 || f.creds[0]["serviceUri"] != "http://svc" {
		t.Errorf("unexpected credentials %v", f.creds)
	}
	if !f.deleted {
		t.Error("run should be deleted")
	}
	if f.authFailures != 0 {
		t.Errorf("expected all requests authenticated, got %d failures", f.authFailures)
	}
}

func TestClient_NotificationsAndReply(t *testing.T) {
	ctx := context.Background()
	f := newFakeServer()
	client, _ := newTestClient(t, f)
	run, _ := client.CreateRun(ctx, nil)

	notes, err := run.Notifications(ctx, NotificationRequests)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != "n1" || notes[0].HasReply || !notes[1].HasReply {
		t.Fatalf("unexpected notifications %+v", notes)
	}

	if err := run.Reply(ctx, "n1", "feed", "42"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if f.replies["n1"]["value"] != "42" {
		t.Errorf("reply not received: %v", f.replies)
	}
}

func TestClient_LogNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFakeServer()
	f.hasLog = false
	client, _ := newTestClient(t, f)
	run, _ := client.CreateRun(ctx, nil)

	err := run.Log(ctx, filepath.Join(t.TempDir(), "log.txt"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_DownloadLogAndZip(t *testing.T) {
	ctx := context.Background()
	f := newFakeServer()
	client, _ := newTestClient(t, f)
	run, _ := client.CreateRun(ctx, nil)
	dir := t.TempDir()

	if err := run.Log(ctx, filepath.Join(dir, "log.txt")); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := run.ZipOutput(ctx, filepath.Join(dir, "all.zip")); err != nil {
		t.Fatalf("zip: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "log.txt"))
	if string(data) != "log line" {
		t.Errorf("unexpected log %q", data)
	}
}

func TestClient_OutputValueLimit(t *testing.T) {
	ctx := context.Background()
	f := newFakeServer()
	client, _ := newTestClient(t, f)
	run, _ := client.CreateRun(ctx, nil)

	ports, err := run.OutputPorts(ctx)
	if err != nil {
		t.Fatalf("output ports: %v", err)
	}
	if len(ports) != 1 || ports[0].Size != 1000 {
		t.Fatalf("unexpected ports %+v", ports)
	}

	value, err := run.OutputValue(ctx, "out", 255)
	if err != nil {
		t.Fatalf("output value: %v", err)
	}
	if len(value) != 255 {
		t.Errorf("expected 255 bytes, got %d", len(value))
	}

	full, _ := run.OutputValue(ctx, "out", 0)
	if len(full) != 1000 {
		t.Errorf("expected full value, got %d bytes", len(full))
	}
}

func TestClient_Read(t *testing.T) {
	f := newFakeServer()
	client, srv := newTestClient(t, f)

	page, err := client.Read(context.Background(), srv.URL+"/interaction.html", "text/html")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(page) != "<html>page</html>" {
		t.Errorf("unexpected page %q", page)
	}
}

func TestClient_StatusErrorIsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "boom")
	}))
	defer srv.Close()

	client, _ := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := client.CreateRun(context.Background(), nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", statusErr.Code)
	}
	if !errors.Is(err, ErrRemote) {
		t.Error("StatusError should match ErrRemote")
	}
	if errors.Is(err, ErrCapacityExceeded) {
		t.Error("500 must not be treated as capacity exceeded")
	}
}
