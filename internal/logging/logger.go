// Package logging implements the dual-sink StructuredLogger from spec
// §4.4: a rotating JSON file sink (ground truth for audit, §7) and a
// human console sink with ANSI colors and tree glyphs. There is exactly
// one StructuredLogger per workflow id.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/xlab/treeprint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSinkConfig controls the rotating JSON file sink.
type FileSinkConfig struct {
	Path        string
	MaxBytes    int // lumberjack works in MB; converted internally
	BackupCount int
}

// DefaultFileSinkConfig matches spec §6 "Persisted state layout":
// dbworkflow.log, max 100 MB x 5 backups.
func DefaultFileSinkConfig() FileSinkConfig {
	return FileSinkConfig{
		Path:        "dbworkflow.log",
		MaxBytes:    100 * 1024 * 1024,
		BackupCount: 5,
	}
}

// StructuredLogger is the single logger instance for one workflow run.
type StructuredLogger struct {
	workflowID string
	fileLogger zerolog.Logger
	console    io.Writer
	mu         sync.Mutex

	progress map[string]*progressState
}

type progressState struct {
	prevCurrent int64
	prevTime    time.Time
}

// New constructs a StructuredLogger writing to cfg.Path (rotated) and to
// console (stdout).
func New(workflowID string, cfg FileSinkConfig) *StructuredLogger {
	rotator := &lumberjack.Logger{
		Filename: cfg.Path,
		MaxSize:  maxMB(cfg.MaxBytes),
		MaxBackups: cfg.BackupCount,
		Compress:   false,
	}
	return &StructuredLogger{
		workflowID: workflowID,
		fileLogger: zerolog.New(rotator).With().Timestamp().Logger(),
		console:    os.Stdout,
		progress:   make(map[string]*progressState),
	}
}

func maxMB(bytes int) int {
	mb := bytes / (1024 * 1024)
	if mb < 1 {
		return 1
	}
	return mb
}

// Log emits entry to both sinks per spec §4.4.
func (l *StructuredLogger) Log(level Level, component, message string, data map[string]any) LogEntry {
	entry := LogEntry{
		Timestamp:  float64(time.Now().UnixNano()) / 1e9,
		WorkflowID: l.workflowID,
		Level:      level,
		Component:  component,
		Message:    message,
		Data:       data,
	}
	l.writeFile(entry)
	l.writeConsole(entry)
	return entry
}

func (l *StructuredLogger) writeFile(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := l.fileLogger.Log()
	ev = ev.Str("workflow_id", entry.WorkflowID).
		Str("level", string(entry.Level)).
		Str("component", entry.Component).
		Str("message", entry.Message).
		Float64("timestamp", entry.Timestamp)
	if entry.StepIndex != nil {
		ev = ev.Int("step_index", *entry.StepIndex)
	}
	if entry.DurationMs != nil {
		ev = ev.Float64("duration_ms", *entry.DurationMs)
	}
	if len(entry.Data) > 0 {
		if raw, err := json.Marshal(entry.Data); err == nil {
			ev = ev.RawJSON("data", raw)
		}
	}
	ev.Send()
}

func levelColor(level Level) *color.Color {
	switch level {
	case LevelDebug:
		return color.New(color.FgHiBlack)
	case LevelInfo:
		return color.New(color.FgCyan)
	case LevelWarning:
		return color.New(color.FgYellow)
	case LevelError, LevelCritical:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.Reset)
	}
}

func (l *StructuredLogger) writeConsole(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := levelColor(entry.Level)
	ts := time.Unix(0, int64(entry.Timestamp*1e9)).Format("15:04:05")
	line := fmt.Sprintf("%s [%s] %s: %s", ts, entry.Level, entry.Component, entry.Message)
	fmt.Fprintln(l.console, c.Sprint(line))
}

// LogStepStart emits an INFO entry tagged with stepIndex for the step's
// start (spec §4.4 log_step_start).
func (l *StructuredLogger) LogStepStart(stepIndex int, stepID, name string) {
	idx := stepIndex
	l.logWithStep(LevelInfo, "workflow", fmt.Sprintf("step %s (%s) started", stepID, name), nil, &idx, nil)
}

// LogStepComplete emits an INFO/ERROR entry with duration for the step's
// completion.
func (l *StructuredLogger) LogStepComplete(stepIndex int, stepID string, duration time.Duration, err error) {
	idx := stepIndex
	ms := float64(duration.Microseconds()) / 1000.0
	if err != nil {
		l.logWithStep(LevelError, "workflow", fmt.Sprintf("step %s failed: %v", stepID, err), nil, &idx, &ms)
		return
	}
	l.logWithStep(LevelInfo, "workflow", fmt.Sprintf("step %s completed", stepID), nil, &idx, &ms)
}

func (l *StructuredLogger) logWithStep(level Level, component, message string, data map[string]any, stepIndex *int, durationMs *float64) {
	entry := LogEntry{
		Timestamp:  float64(time.Now().UnixNano()) / 1e9,
		WorkflowID: l.workflowID,
		Level:      level,
		Component:  component,
		Message:    message,
		Data:       data,
		StepIndex:  stepIndex,
		DurationMs: durationMs,
	}
	l.writeFile(entry)
	l.writeConsole(entry)
}

// LogTable renders a table payload to the file sink in full and a
// summarized line to console.
func (l *StructuredLogger) LogTable(p TablePayload, title string) {
	l.logPayload(StructuredPayload{Kind: PayloadTable, Title: title, Table: &p})
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "%s (%d rows)\n", title, len(p.Rows))
}

// LogTree renders a tree payload with "├─"/"└─" glyphs to console using
// xlab/treeprint, and the full structure to the file sink.
func (l *StructuredLogger) LogTree(root TreePayload, title string) {
	l.logPayload(StructuredPayload{Kind: PayloadTree, Title: title, Tree: &root})

	tp := treeprint.NewWithRoot(root.Label)
	var walk func(node *TreePayload, branch treeprint.Tree)
	walk = func(node *TreePayload, branch treeprint.Tree) {
		for _, child := range node.Children {
			b := branch.AddBranch(child.Label)
			walk(child, b)
		}
	}
	walk(&root, tp)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console, title)
	fmt.Fprint(l.console, tp.String())
}

// LogMetrics emits a metrics payload (final workflow summary, QA score,
// chat-outage counters, ...).
func (l *StructuredLogger) LogMetrics(values map[string]float64, title string) {
	l.logPayload(StructuredPayload{Kind: PayloadMetrics, Title: title, Metrics: &MetricsPayload{Values: values}})
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "%s: %s\n", title, formatMetrics(values))
}

func formatMetrics(values map[string]float64) string {
	parts := make([]string, 0, len(values))
	for k, v := range values {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, v))
	}
	return strings.Join(parts, " ")
}

func (l *StructuredLogger) logPayload(p StructuredPayload) {
	l.mu.Lock()
	raw, _ := json.Marshal(p)
	ev := l.fileLogger.Log().Str("workflow_id", l.workflowID).Str("kind", string(p.Kind)).Str("title", p.Title)
	ev.RawJSON("payload", raw).Send()
	l.mu.Unlock()
}

// EnvironmentSummary implements spec §4.4's deliberate console/file
// asymmetry: one human line to console, the full parameter dump only to
// the file sink.
func (l *StructuredLogger) EnvironmentSummary(paramCount, secretCount int, fullDump map[string]string) {
	l.mu.Lock()
	fmt.Fprintf(l.console, "📊 Environment validated: %d parameters, %d secrets\n", paramCount, secretCount)
	raw, _ := json.Marshal(fullDump)
	l.fileLogger.Log().Str("workflow_id", l.workflowID).Str("component", "parameters").RawJSON("parameters", raw).Msg("environment validated")
	l.mu.Unlock()
}
