package logging

import "time"

// Level mirrors the spec's closed level set.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// LogEntry is immutable once emitted.
type LogEntry struct {
	Timestamp  float64        `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Level      Level          `json:"level"`
	Component  string         `json:"component"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	StepIndex  *int           `json:"step_index,omitempty"`
	DurationMs *float64       `json:"duration_ms,omitempty"`
}

// PayloadKind discriminates StructuredPayload's content, per Design Note
// "dynamic typing and duck typing → tagged sum types".
type PayloadKind string

const (
	PayloadTable    PayloadKind = "table"
	PayloadTree     PayloadKind = "tree"
	PayloadMetrics  PayloadKind = "metrics"
	PayloadProgress PayloadKind = "progress"
)

// StructuredPayload is the discriminated union of §3's StructuredPayload.
// Exactly one of Table/Tree/Metrics/Progress is populated, matching Kind.
type StructuredPayload struct {
	Kind  PayloadKind
	Title string

	Table    *TablePayload
	Tree     *TreePayload
	Metrics  *MetricsPayload
	Progress *ProgressPayload
}

type TablePayload struct {
	Headers  []string
	Rows     [][]string
	Metadata map[string]string
}

// TreePayload carries a nested mapping label -> children.
type TreePayload struct {
	Label    string
	Children []*TreePayload
}

type MetricsPayload struct {
	Values map[string]float64
}

type ProgressStatus string

const (
	ProgressStarted   ProgressStatus = "started"
	ProgressRunning   ProgressStatus = "progress"
	ProgressCompleted ProgressStatus = "completed"
	ProgressFailed    ProgressStatus = "failed"
)

type ProgressPayload struct {
	StepName string
	Status   ProgressStatus
	Percent  *float64
	ETA      *time.Duration
	Current  *int64
	Total    *int64
	Rate     *float64
}
