package proxy

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

const (
	notificationsURI = "http://internal:8080/rest/runs/r1/listeners/io/properties/notifications"
	interactionsURI  = "http://internal:8080/rest/runs/r1/wd/interactions"
)

func TestNewRewriter_RejectsRelative(t *testing.T) {
	if _, err := NewRewriter("player.example.org"); err == nil {
		t.Error("expected error for relative public url")
	}
}

func TestRewriter_ProxyURL(t *testing.T) {
	rw, err := NewRewriter("https://player.example.org/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runID := uuid.MustParse("6f1c1c2e-8d7a-4a43-9d43-0b5a4f1f3e11")

	got := rw.ProxyURL(runID, "n1")
	want := "https://player.example.org/runs/6f1c1c2e-8d7a-4a43-9d43-0b5a4f1f3e11/proxy/n1"
	if got != want {
		t.Errorf("ProxyURL = %q, want %q", got, want)
	}
}

func TestRewriter_Rewrite(t *testing.T) {
	rw, _ := NewRewriter("https://player.example.org")
	runID := uuid.New()

	page := `<form action="` + interactionsURI + `/n1/reply"></form>` +
		`<script src="` + interactionsURI + `/pmrpc.js"></script>` +
		`<a href="` + notificationsURI + `">feed</a>`

	got := rw.Rewrite(page, runID, "n1", notificationsURI, interactionsURI)

	if strings.Contains(got, "internal:8080") {
		t.Errorf("internal address left in page: %s", got)
	}
	proxy := rw.ProxyURL(runID, "n1")
	if strings.Count(got, proxy) != 3 {
		t.Errorf("expected 3 proxy links, got %d in %s", strings.Count(got, proxy), got)
	}
	if !strings.Contains(got, proxy+"/pmrpc.js") {
		t.Errorf("path suffix should be preserved: %s", got)
	}
}

func TestRewriter_Deterministic(t *testing.T) {
	rw, _ := NewRewriter("https://player.example.org")
	runID := uuid.New()
	page := `<a href="` + interactionsURI + `/x">x</a><a href="` + notificationsURI + `">y</a>`

	first := rw.Rewrite(page, runID, "n1", notificationsURI, interactionsURI)
	second := rw.Rewrite(page, runID, "n1", notificationsURI, interactionsURI)

	if first != second {
		t.Errorf("rewriting the same page twice differs:\n%s\n%s", first, second)
	}
}

func TestRewriter_PrefixURIs(t *testing.T) {
	rw, _ := NewRewriter("https://player.example.org")
	runID := uuid.New()
	// Адрес уведомлений — префикс адреса взаимодействий.
	notes := "http://srv/runs/r1"
	inter := "http://srv/runs/r1/interactions"

	got := rw.Rewrite(`<a href="`+inter+`/page">p</a>`, runID, "n1", notes, inter)
	want := `<a href="` + rw.ProxyURL(runID, "n1") + `/page">p</a>`

	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewriter_EmptyURIs(t *testing.T) {
	rw, _ := NewRewriter("https://player.example.org")
	page := "<html>nothing to do</html>"

	if got := rw.Rewrite(page, uuid.New(), "n1", "", ""); got != page {
		t.Errorf("page should be unchanged, got %q", got)
	}
}
