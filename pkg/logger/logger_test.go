package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(
		OutputLoggerOption(&buf),
		FormatLoggerOption(JSONFormat),
		LevelLoggerOption(DebugLevel),
	)
	log.WithFields(map[string]any{"conn": "c1", "sid": 3}).Debugf("frame %s", "HEADERS")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m["msg"] != "frame HEADERS" || m["conn"] != "c1" || m["level"] != "debug" {
		t.Fatalf("unexpected entry %v", m)
	}
}

func TestLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(OutputLoggerOption(&buf), LevelLoggerOption(WarnLevel))
	if log.GetLevel() != WarnLevel {
		t.Fatalf("level %s", log.GetLevel())
	}
	if log.IsLevelEnabled(InfoLevel) || !log.IsLevelEnabled(ErrorLevel) {
		t.Fatal("level filter")
	}

	log.Info("dropped")
	log.Warn("kept")
	if out := buf.String(); strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("output %q", out)
	}

	if NewLogger(LevelLoggerOption("bogus")).GetLevel() != InfoLevel {
		t.Fatal("unknown level should fall back to info")
	}
}

func TestDefault(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	SetDefault(nil)
	if Default() != Nop() {
		t.Fatal("nil default should become the nop logger")
	}
	Default().Info("nothing")
}
