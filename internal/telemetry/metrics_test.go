package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRunFinished(t *testing.T) {
	tests := []struct {
		name  string
		state string
	}{
		{"finished", "finished"},
		{"failed", "failed"},
		{"deleted", "deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(runsTotal.With(prometheus.Labels{"state": tt.state}))

			RecordRunFinished(tt.state)

			after := testutil.ToFloat64(runsTotal.With(prometheus.Labels{"state": tt.state}))
			if after != before+1 {
				t.Errorf("expected count to increment by 1, got before=%f, after=%f", before, after)
			}
		})
	}
}

func TestRecordCapacityWait(t *testing.T) {
	before := testutil.ToFloat64(capacityWaits.WithLabelValues(OperationStart))

	RecordCapacityWait(OperationStart)
	RecordCapacityWait(OperationStart)

	after := testutil.ToFloat64(capacityWaits.WithLabelValues(OperationStart))
	if after != before+2 {
		t.Errorf("expected +2, got before=%f, after=%f", before, after)
	}
}

func TestActiveRunsGauge(t *testing.T) {
	before := testutil.ToFloat64(activeRuns)
	RunStarted()
	if got := testutil.ToFloat64(activeRuns); got != before+1 {
		t.Errorf("expected %f, got %f", before+1, got)
	}
	RunDone()
	if got := testutil.ToFloat64(activeRuns); got != before {
		t.Errorf("expected %f, got %f", before, got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRunID(NewLogger(&buf, slog.LevelInfo, "text"), "abc")

	logger.Info("hello")

	if !strings.Contains(buf.String(), "run_id=abc") {
		t.Errorf("expected run_id attribute, got %q", buf.String())
	}
}
