package launcher

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLocalRunCapturesOutput(t *testing.T) {
	l := NewLocal("")
	h, err := l.Run(context.Background(), "echo", []string{"hello"}, RunOptions{CaptureOutput: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if h.ExitCode() != 0 {
		t.Fatalf("ExitCode() = %d, want 0", h.ExitCode())
	}
	if got := strings.TrimSpace(string(h.Stdout())); got != "hello" {
		t.Fatalf("Stdout() = %q, want %q", got, "hello")
	}
}

func TestLocalKindAndOwner(t *testing.T) {
	l := NewLocal("gfx01")
	if l.Kind() != "local" {
		t.Errorf("Kind() = %q, want local", l.Kind())
	}
	if l.Locality() != "gfx01" {
		t.Errorf("Locality() = %q, want gfx01", l.Locality())
	}
	if !l.IsOwner() {
		t.Error("expected local launcher to always be its own owner")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestLocalWaitWithTimeoutKillsSlowCommand(t *testing.T) {
	l := NewLocal("")
	h, err := l.Run(context.Background(), "sleep", []string{"5"}, RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	completed, err := WaitWithTimeout(h, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitWithTimeout() error = %v", err)
	}
	if completed {
		t.Fatal("expected the slow command to be killed before completing")
	}
}

func TestCleanEnvStripsFakerPreload(t *testing.T) {
	env := cleanEnv(map[string]string{
		"LD_PRELOAD": "/usr/lib/librrfaker.so:/usr/lib/other.so",
		"PATH":       "/usr/bin",
	})
	for _, entry := range env {
		if strings.Contains(entry, "librrfaker.so") {
			t.Errorf("expected librrfaker.so to be stripped, got entry %q", entry)
		}
	}
	if !hasEnvEntry(env, "LD_PRELOAD", "/usr/lib/other.so") {
		t.Error("expected the non-faker preload entry to survive")
	}
}

func TestCleanEnvDropsLDPreloadWhenOnlyFakerPresent(t *testing.T) {
	env := cleanEnv(map[string]string{"LD_PRELOAD": "/usr/lib/librrfaker.so"})
	if hasEnvEntry(env, "LD_PRELOAD", "") {
		t.Error("expected an empty LD_PRELOAD to be dropped entirely")
	}
	for _, entry := range env {
		if strings.HasPrefix(entry, "LD_PRELOAD=") {
			t.Errorf("expected no LD_PRELOAD entry at all, got %q", entry)
		}
	}
}

func hasEnvEntry(env []string, key, value string) bool {
	target := key + "=" + value
	for _, entry := range env {
		if entry == target {
			return true
		}
	}
	return false
}

func TestBatchCopyIsNotOwner(t *testing.T) {
	b := NewBatch(42, "gfx03")
	if !b.IsOwner() {
		t.Fatal("expected freshly created batch launcher to own its reservation")
	}
	cp := b.Copy()
	if cp.IsOwner() {
		t.Error("expected a copied batch launcher to not own the reservation")
	}
	if cp.Locality() != b.Locality() {
		t.Errorf("Locality() = %q, want %q", cp.Locality(), b.Locality())
	}
}

func TestRemoteShellQuotesArguments(t *testing.T) {
	got := shellQuoteJoin([]string{"echo", "it's a test"})
	want := `'echo' 'it'\''s a test'`
	if got != want {
		t.Errorf("shellQuoteJoin() = %q, want %q", got, want)
	}
}
