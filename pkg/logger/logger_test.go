package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to parse log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"}
			if New(cfg) == nil {
				t.Fatal("Expected logger to be created")
			}
			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("Expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{" warning ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelsFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "test")

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept warn")
	log.Error("kept error")

	entries := decode(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries at warn level, got %d", len(entries))
	}
	if entries[0]["message"] != "kept warn" || entries[1]["level"] != "error" {
		t.Errorf("Unexpected entries: %v", entries)
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "test")

	log.WithModule("reconciler").
		WithRun("run-1").
		WithInstrument("600000.SH").
		WithFields(map[string]interface{}{"missing": 3, "trading": 240}).
		WithError(errors.New("calendar gap")).
		Info("report built")

	e := decode(t, &buf)[0]
	want := map[string]interface{}{
		"module":        "reconciler",
		"run_id":        "run-1",
		"instrument_id": "600000.SH",
		"missing":       float64(3),
		"trading":       float64(240),
		"error":         "calendar gap",
		"env":           "test",
	}
	for k, v := range want {
		if e[k] != v {
			t.Errorf("Expected %s=%v, got %v", k, v, e[k])
		}
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&buf, "info", "test")

	_ = parent.WithField("exchange", "SSE")
	parent.Info("plain")

	if _, ok := decode(t, &buf)[0]["exchange"]; ok {
		t.Error("Child field leaked into parent logger")
	}
}

func TestComputation(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "test")

	log.Computation(contracts.ComputationWarning{
		InstrumentID: "000001.SZ",
		Date:         contracts.MustParseDate("2024-01-02"),
		Feature:      "returns_skewness",
		Reason:       "fewer than 3 returns",
	})

	e := decode(t, &buf)[0]
	if e["level"] != "warn" {
		t.Errorf("Expected warn level, got %v", e["level"])
	}
	if e["trade_date"] != "2024-01-02" || e["feature"] != "returns_skewness" {
		t.Errorf("Unexpected fields: %v", e)
	}
	if e["message"] != "fewer than 3 returns" {
		t.Errorf("Expected reason as message, got %v", e["message"])
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.WithModule("x").WithError(errors.New("boom")).Error("discarded")
}
