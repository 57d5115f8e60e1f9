package service_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/msomdec/realty/internal/service"
)

func TestLogMailer_KeepsBodyOutOfInfoLogs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	msg := service.Message{
		ToEmail:   "gina@example.com",
		Subject:   "Reset your password",
		PlainText: "Open http://localhost/reset-password/secret-token-123",
	}
	if err := (service.LogMailer{}).Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "gina@example.com") || !strings.Contains(out, "Reset your password") {
		t.Fatalf("expected recipient and subject in the log, got %s", out)
	}
	if strings.Contains(out, "secret-token-123") {
		t.Fatalf("reset token leaked into info logs: %s", out)
	}
}
