// Package logging writes structured log entries scoped by component, correlation
// id and the batch and item being processed.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ApplicationLogger is the structured logger used across the pipeline.
type ApplicationLogger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)
	ErrorWithError(ctx context.Context, err error, message string, fields Fields)
	LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields)
	WithComponent(component string) ApplicationLogger
}

type Fields map[string]any

// Config selects level (DEBUG..ERROR, any case), format (json or text) and
// output (stdout, stderr, or buffer for tests).
type Config struct {
	Level  string
	Format string
	Output string
}

// LogEntry is the JSON shape of one line.
type LogEntry struct {
	Timestamp     string         `json:"timestamp"`
	Level         string         `json:"level"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlation_id"`
	Component     string         `json:"component"`
	Operation     string         `json:"operation,omitempty"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l level) String() string { return levelNames[l] }

func parseLevel(s string) (level, bool) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return level(i), true
		}
	}
	return 0, false
}

// sink is shared by a logger and every component logger derived from it.
type sink struct {
	mu     sync.Mutex
	w      io.Writer
	buffer *bytes.Buffer
}

func (s *sink) writeLine(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(append(line, '\n'))
}

type logger struct {
	min       level
	json      bool
	component string
	out       *sink
}

// NewApplicationLogger validates cfg and builds a logger.
func NewApplicationLogger(cfg Config) (ApplicationLogger, error) {
	min, ok := parseLevel(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		return nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	out := &sink{}
	switch cfg.Output {
	case "stdout":
		out.w = os.Stdout
	case "stderr":
		out.w = os.Stderr
	case "buffer":
		out.buffer = &bytes.Buffer{}
		out.w = out.buffer
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}
	return &logger{min: min, json: cfg.Format == "json", out: out}, nil
}

func (l *logger) Debug(ctx context.Context, message string, fields Fields) {
	l.log(ctx, levelDebug, message, "", fields)
}

func (l *logger) Info(ctx context.Context, message string, fields Fields) {
	l.log(ctx, levelInfo, message, "", fields)
}

func (l *logger) Warn(ctx context.Context, message string, fields Fields) {
	l.log(ctx, levelWarn, message, "", fields)
}

func (l *logger) Error(ctx context.Context, message string, fields Fields) {
	l.log(ctx, levelError, message, "", fields)
}

func (l *logger) ErrorWithError(ctx context.Context, err error, message string, fields Fields) {
	var errText string
	if err != nil {
		errText = err.Error()
	}
	l.log(ctx, levelError, message, errText, fields)
}

// LogPerformance logs operation and its duration at INFO. fields is not modified.
func (l *logger) LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields) {
	merged := make(Fields, len(fields)+2)
	for k, v := range fields {
		merged[k] = v
	}
	merged["operation"] = operation
	merged["duration"] = duration.String()
	l.log(ctx, levelInfo, "Performance metrics for "+operation, "", merged)
}

func (l *logger) WithComponent(component string) ApplicationLogger {
	scoped := *l
	scoped.component = component
	return &scoped
}

func (l *logger) log(ctx context.Context, lvl level, message, errText string, fields Fields) {
	if lvl < l.min {
		return
	}

	entry := LogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Level:         lvl.String(),
		Message:       message,
		CorrelationID: correlationID(ctx),
		Component:     l.component,
		Error:         errText,
	}
	if entry.Component == "" {
		entry.Component = "default"
	}
	if len(fields) > 0 {
		entry.Metadata = make(map[string]any, len(fields))
		for k, v := range fields {
			entry.Metadata[k] = v
		}
		if op, ok := fields["operation"].(string); ok {
			entry.Operation = op
		}
	}
	for key, name := range map[contextKey]string{BatchIDKey: "batch_id", ItemIDKey: "item_id"} {
		if v := stringFromContext(ctx, key); v != "" {
			if entry.Context == nil {
				entry.Context = map[string]any{}
			}
			entry.Context[name] = v
		}
	}

	if !l.json {
		line := fmt.Sprintf("[%s] %s %s: %s", entry.Timestamp, entry.Level, entry.Component, entry.Message)
		if entry.Error != "" {
			line += " error=" + entry.Error
		}
		l.out.writeLine([]byte(line))
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(LogEntry{
			Timestamp: entry.Timestamp, Level: entry.Level, Message: entry.Message,
			CorrelationID: entry.CorrelationID, Component: entry.Component,
			Error: "unencodable log fields: " + err.Error(),
		})
	}
	l.out.writeLine(data)
}

// BufferedLines returns the non-empty lines written to a logger built with
// Output "buffer". Other loggers return nil.
func BufferedLines(l ApplicationLogger) []string {
	impl, ok := l.(*logger)
	if !ok || impl.out.buffer == nil {
		return nil
	}
	impl.out.mu.Lock()
	text := impl.out.buffer.String()
	impl.out.mu.Unlock()

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
