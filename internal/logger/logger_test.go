package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := WithFields(zap.New(core), RunFields(" run-1 ", "bando.pdf")...)
	log.Info("ingested")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx[FieldRun] != "run-1" {
		t.Fatalf("expected run id run-1, got %q", ctx[FieldRun])
	}
	if ctx[FieldSource] != "bando.pdf" {
		t.Fatalf("expected source bando.pdf, got %q", ctx[FieldSource])
	}

	if WithFields(nil, zap.String("k", "v")) == nil {
		t.Fatal("expected fallback logger when nil provided")
	}
}

func TestRunFieldsSkipsBlank(t *testing.T) {
	if got := RunFields("  ", ""); len(got) != 0 {
		t.Fatalf("expected no fields, got %d", len(got))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"  short  ", 10, "short"},
		{"àèìòù", 3, "àèì..."},
		{"anything", 0, ""},
		{strings.Repeat("x", 5), 5, "xxxxx"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.limit); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}
