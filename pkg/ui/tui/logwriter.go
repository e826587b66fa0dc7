package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// hiddenFields are left out of rendered log lines
var hiddenFields = map[string]bool{
	zerolog.TimestampFieldName: true,
	zerolog.LevelFieldName:     true,
	zerolog.MessageFieldName:   true,
	"app":                      true,
	"run_id":                   true,
}

// LogWriter turns zerolog JSON events into LogMsg values. zerolog writes
// one event per Write call.
type LogWriter struct {
	send func(tea.Msg)
}

// NewLogWriter creates a LogWriter delivering messages through send
func NewLogWriter(send func(tea.Msg)) *LogWriter {
	return &LogWriter{send: send}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	var event map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		w.send(LogMsg{Level: "INFO", Message: strings.TrimSpace(string(p))})
		return len(p), nil
	}
	w.send(parseEvent(event))
	return len(p), nil
}

func parseEvent(event map[string]interface{}) LogMsg {
	level, _ := event[zerolog.LevelFieldName].(string)
	message, _ := event[zerolog.MessageFieldName].(string)

	keys := make([]string, 0, len(event))
	for k := range event {
		if !hiddenFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := []string{message}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, event[k]))
	}

	return LogMsg{Level: levelLabel(level), Message: strings.Join(parts, " ")}
}

func levelLabel(level string) string {
	switch level {
	case zerolog.LevelWarnValue:
		return "WARN"
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return "ERROR"
	case zerolog.LevelDebugValue, zerolog.LevelTraceValue:
		return "DEBUG"
	default:
		return "INFO"
	}
}
