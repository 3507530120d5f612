package privacylog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSanitizeAttrRedactsSensitiveKeys(t *testing.T) {
	attr := SanitizeAttr(slog.String("root_key", "0123456789abcdef"))
	if attr.Value.String() != redactedValue {
		t.Fatalf("expected redaction, got %q", attr.Value.String())
	}
}

func TestSanitizeAttrFingerprintsIdentityKeys(t *testing.T) {
	attr := SanitizeAttr(slog.String("conversation_id", "conv-123"))
	if attr.Key != "conversation_id_fp" {
		t.Fatalf("expected fingerprinted key name, got %q", attr.Key)
	}
	if !strings.HasPrefix(attr.Value.String(), "fp_") {
		t.Fatalf("expected fp_-prefixed fingerprint, got %q", attr.Value.String())
	}
	if attr.Value.String() == "conv-123" {
		t.Fatal("raw identifier leaked unredacted")
	}
}

func TestFingerprintIDStableForSameProcess(t *testing.T) {
	a := FingerprintID("device-1")
	b := FingerprintID("device-1")
	if a != b {
		t.Fatalf("expected stable fingerprint within a process, got %q vs %q", a, b)
	}
	if FingerprintID("device-2") == a {
		t.Fatal("expected different inputs to fingerprint differently")
	}
}

func TestSanitizeAttrPassesThroughOrdinaryKeys(t *testing.T) {
	attr := SanitizeAttr(slog.Int("retry_count", 3))
	if attr.Key != "retry_count" || attr.Value.Int64() != 3 {
		t.Fatalf("expected ordinary attr unchanged, got %+v", attr)
	}
}

func TestHandlerRedactsBeforeDelegating(t *testing.T) {
	var buf bytes.Buffer
	h := Wrap(slog.NewTextHandler(&buf, nil))
	logger := slog.New(h)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "session established",
		slog.String("passphrase", "hunter2"),
		slog.String("device_id", "dev-abc"),
	)
	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("expected passphrase to be redacted from log output, got %q", out)
	}
	if strings.Contains(out, "dev-abc") {
		t.Fatalf("expected device_id to be fingerprinted in log output, got %q", out)
	}
}
