package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/worker"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "player.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %v", cfg.Worker.PollInterval)
	}
	if cfg.Worker.RetryInterval != 10*time.Second {
		t.Errorf("expected 10s retry interval, got %v", cfg.Worker.RetryInterval)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  url: https://taverna.example.org/rest
  username: taverna
  password: secret
worker:
  poll_interval: 3s
  retry_interval: 30s
  max_concurrent_runs: 8
callbacks:
  post_run: notify
public_url: https://player.example.org
`)
	t.Setenv("PLAYER_RETRY_INTERVAL", "1m")
	t.Setenv("PLAYER_SERVER_USERNAME", "override")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.URL != "https://taverna.example.org/rest" {
		t.Errorf("server url from file, got %q", cfg.Server.URL)
	}
	if cfg.Server.Username != "override" {
		t.Errorf("env should override username, got %q", cfg.Server.Username)
	}
	if cfg.Worker.PollInterval != 3*time.Second {
		t.Errorf("poll interval from file, got %v", cfg.Worker.PollInterval)
	}
	if cfg.Worker.RetryInterval != time.Minute {
		t.Errorf("env should override retry interval, got %v", cfg.Worker.RetryInterval)
	}
	if cfg.Worker.MaxConcurrentRuns != 8 {
		t.Errorf("expected 8 concurrent runs, got %d", cfg.Worker.MaxConcurrentRuns)
	}
	if cfg.Callbacks.PostRun != "notify" {
		t.Errorf("expected post-run callback name, got %q", cfg.Callbacks.PostRun)
	}
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	t.Setenv("PLAYER_POLL_INTERVAL", "soon")

	_, err := Load("")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = "not a url"
	cfg.Worker.PollInterval = 0
	cfg.Worker.SweepSchedule = "every now and then"

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{"server.url", "worker.poll_interval", "worker.sweep_schedule"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestResolveCallbacks(t *testing.T) {
	reg := worker.NewCallbackRegistry()
	reg.Register("notify", func(context.Context, *domain.Run) error { return nil })

	cfg := Default()
	cfg.Callbacks.PostRun = "notify"

	cbs, err := cfg.ResolveCallbacks(reg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cbs.PostRun == nil || cbs.PreRun != nil {
		t.Errorf("unexpected callbacks: %+v", cbs)
	}

	cfg.Callbacks.Cancelled = "missing"
	if _, err := cfg.ResolveCallbacks(reg); !errors.Is(err, worker.ErrUnknownCallback) {
		t.Errorf("expected ErrUnknownCallback, got %v", err)
	}
}
