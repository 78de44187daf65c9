package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_StampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentPoster, Output: &buf})

	l.Info("run finished", FieldRuleID, int64(7))
	out := buf.String()
	if !strings.Contains(out, "component=poster") || !strings.Contains(out, "rule_id=7") {
		t.Errorf("log line = %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentHTTP).Debug("x")
	if !strings.Contains(buf.String(), "component=http") {
		t.Errorf("WithComponent line = %q", buf.String())
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("fallback component = %q", got.Component())
	}
	l := New(Config{Component: ComponentWorker, Output: &bytes.Buffer{}})
	ctx := IntoContext(context.Background(), l)
	if got := FromContext(ctx); got != l {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentStatement).
		WithOperation(OpPay).
		WithOwner("alice").
		WithStatement(3, 1, "2024-02-06..2024-03-05", 15000).
		WithError(errors.New("boom")).
		WithError(nil)

	if f[FieldError] != "boom" || f[FieldStatementID] != int64(3) || f[FieldOwner] != "alice" {
		t.Errorf("fields = %v", f)
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Errorf("ToSlice len = %d, want %d", got, 2*len(f))
	}
}
