package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dtroode/schoolhub-client/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))}
}

// LogSink collects the JSON records of a capture logger.
type LogSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Len returns the number of bytes written so far.
func (s *LogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Entries decodes every record written so far.
func (s *LogSink) Entries(t testing.TB) []map[string]any {
	t.Helper()

	s.mu.Lock()
	data := append([]byte(nil), s.buf.Bytes()...)
	s.mu.Unlock()

	var entries []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var e map[string]any
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode log record %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

// MakeCaptureLogger returns a JSON logger at level and the sink it writes to.
func MakeCaptureLogger(level slog.Level) (*logger.Logger, *LogSink) {
	sink := &LogSink{}
	return logger.NewWithFormat(sink, int(level), "json"), sink
}
