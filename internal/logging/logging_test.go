package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("allocator")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("allocation granted", "allocationId", 7)

	out := buf.String()
	if strings.Contains(out, `msg="INFO allocation granted`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "allocation granted") {
		t.Fatalf("expected plain message, got: %s", out)
	}
	if !strings.Contains(out, "component=allocator") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "allocationId=7") {
		t.Fatalf("expected allocationId field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("session")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestInitSwitchesJSONFormat(t *testing.T) {
	logger := L("xserver")

	var buf bytes.Buffer
	Init("json", "info", &buf)

	logger.Info("server started", "display", 0)

	out := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected JSON output, got: %s", out)
	}
	if !strings.Contains(out, `"component":"xserver"`) {
		t.Fatalf("expected component field in JSON, got: %s", out)
	}
}
