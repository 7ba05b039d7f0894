package mq

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDecode(t *testing.T) {
	id := uuid.New()
	body := fmt.Sprintf(`{"id":"m1","type":"run.pending","payload":{"run_id":%q},"timestamp":"2026-01-01T00:00:00Z"}`, id)

	msg, err := decode([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != MessageTypeRunPending {
		t.Errorf("expected run.pending, got %s", msg.Type)
	}

	payload, err := ParsePayload[RunPendingPayload](&msg)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.RunID != id {
		t.Errorf("expected run id %s, got %s", id, payload.RunID)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json": `{`,
		"no type":  `{"id":"m1","payload":{}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := decode([]byte(body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParsePayload_BadShapeIsPermanent(t *testing.T) {
	msg := &Message{Type: MessageTypeRunPending, Payload: map[string]any{"run_id": "not-a-uuid"}}

	_, err := ParsePayload[RunPendingPayload](msg)
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("expected ErrPermanent, got %v", err)
	}
}

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        bool
	}{
		{"first failure", errors.New("db down"), false, true},
		{"second failure", errors.New("db down"), true, false},
		{"permanent", fmt.Errorf("wrap: %w", ErrPermanent), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRequeue(tt.err, tt.redelivered); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologyInfo(t *testing.T) {
	info := TopologyInfo()
	for _, want := range []string{"runs.pending", "runs.finished", "dlq.runs", "DLQ via player.dlq"} {
		if !strings.Contains(info, want) {
			t.Errorf("topology info should mention %q:\n%s", want, info)
		}
	}
}
