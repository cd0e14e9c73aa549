package debug

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func TestEnableDisable(t *testing.T) {
	defer Disable()

	Disable()
	if Enabled() {
		t.Fatal("expected debug disabled")
	}
	Enable()
	if !Enabled() {
		t.Fatal("expected debug enabled")
	}
}

func TestSetOutputKeepsLevelAndComponent(t *testing.T) {
	previous := Logger()
	defer logger.Store(previous)
	defer Disable()

	var buf bytes.Buffer
	SetOutput(func(opts *slog.HandlerOptions) slog.Handler {
		return slog.NewJSONHandler(&buf, opts)
	})

	Disable()
	Component("socket-server").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written while disabled: %s", buf.String())
	}

	Enable()
	Component("socket-server").Debug("shown", "socket", "a")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["msg"] != "shown" || record["component"] != "socket-server" || record["socket"] != "a" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestSetOutputConcurrentWithReaders(t *testing.T) {
	previous := Logger()
	defer logger.Store(previous)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Component("reader").Info("tick")
			}
		}()
	}
	for j := 0; j < 100; j++ {
		SetOutput(func(opts *slog.HandlerOptions) slog.Handler {
			return slog.NewTextHandler(io.Discard, opts)
		})
	}
	wg.Wait()

	if Logger() == nil {
		t.Fatal("expected a logger after concurrent SetOutput")
	}
}
