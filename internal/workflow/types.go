// Package workflow implements the declarative DAG workflow engine of
// spec §4.6: a fluent builder producing a Workflow, a WorkflowContext
// shared across steps, and a topological, bounded-parallel scheduler
// with per-step timeouts, retries, and a stop-on-error policy. Grounded
// on the teacher's pkg/domain/workflow/{types,orchestrator,step_types}.go
// WorkflowState/Step shape.
package workflow

import (
	"context"
	"sync"
	"time"
)

// StepKind is the closed enum from spec §3.
type StepKind string

const (
	KindTool        StepKind = "Tool"
	KindCustom      StepKind = "Custom"
	KindConditional StepKind = "Conditional"
)

// StepFunc is the named, module-scope-only function type for Custom
// steps. Per Design Note "closures in steps", implementations must
// register named functions (see Registry), not capture inline closures,
// so a step body is always traceable back to a name in structured logs
// and (for future checkpoint/replay) is re-resolvable by name.
type StepFunc func(ctx context.Context, wfCtx *Context, params map[string]any) (any, error)

// ConditionFunc backs a Conditional step; it runs like a StepFunc and its
// bool result is recorded as the step's value. The step completes
// whenever the function returns no error: a false result skips neither
// the step nor its dependents.
type ConditionFunc func(ctx context.Context, wfCtx *Context, params map[string]any) (bool, error)

// Step is one node of the workflow DAG (spec §3 WorkflowStep).
type Step struct {
	ID         string
	Name       string
	Kind       StepKind
	ServerName string
	ToolName   string
	Parameters map[string]any
	DependsOn  []string

	Timeout      time.Duration
	RetryCount   int
	DelaySeconds time.Duration

	// FuncName resolves against Registry for Kind == Custom/Conditional.
	FuncName string
}

// Config is spec §3's WorkflowConfig.
type Config struct {
	Name               string
	Description        string
	MaxParallelSteps   int
	DefaultTimeout     time.Duration
	DefaultRetryCount  int
	StopOnError        bool
}

// DefaultConfig matches spec §5's default of 4 parallel steps.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		MaxParallelSteps:  4,
		DefaultTimeout:    2 * time.Minute,
		DefaultRetryCount: 0,
		StopOnError:       false,
	}
}

// Workflow is a validated DAG plus its configuration (spec §3).
type Workflow struct {
	Config   Config
	Steps    map[string]*Step
	order    []string // topological order, computed at Build()
	registry *Registry
}

// Status is the closed enum of spec §3 WorkflowResult.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// StepOutcome is the per-step terminal state tracked during execution.
type StepOutcome string

const (
	OutcomePending   StepOutcome = "pending"
	OutcomeRunning   StepOutcome = "running"
	OutcomeCompleted StepOutcome = "completed"
	OutcomeFailed    StepOutcome = "failed"
	OutcomeSkipped   StepOutcome = "skipped"
)

// StepResult is what gets recorded in Context.stepResults and
// Result.StepResults.
type StepResult struct {
	StepID   string
	Outcome  StepOutcome
	Value    any
	Err      error
	Retries  int
	Duration time.Duration
}

// Result is spec §3's WorkflowResult.
type Result struct {
	WorkflowID  string
	Status      Status
	Duration    time.Duration
	StepResults map[string]StepResult
	SuccessRate float64
}

// Context is spec §4.5's WorkflowContext: step_results (engine-written
// only), shared_values (freely read/write between steps), and a
// per-run tool-client cache. It is single-threaded from the perspective
// of any one step — the engine only starts a step once everything in
// DependsOn has completed, giving a happens-before edge into its view of
// the context.
type Context struct {
	mu           sync.RWMutex
	stepResults  map[string]StepResult
	sharedValues map[string]any
	clients      map[string]any
}

func NewContext() *Context {
	return &Context{
		stepResults:  make(map[string]StepResult),
		sharedValues: make(map[string]any),
		clients:      make(map[string]any),
	}
}

func (c *Context) setResult(r StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepResults[r.StepID] = r
}

// StepResult returns the recorded result for stepID, if any.
func (c *Context) StepResult(stepID string) (StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.stepResults[stepID]
	return r, ok
}

// Set writes a shared value. Concurrent writes to the same key from
// sibling steps are a programming error (spec §5) — callers should
// namespace keys per step; Set does not attempt to detect the race, it
// simply performs the write under the context's own lock so the data
// race detector stays quiet while the logic error remains visible in
// tests that assert on key ownership.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sharedValues[key] = value
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sharedValues[key]
	return v, ok
}

// Client lazily-initializes and reuses a named tool client for the
// lifetime of this context/run (spec §4.5).
func (c *Context) Client(name string, build func() (any, error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[name]; ok {
		return cl, nil
	}
	cl, err := build()
	if err != nil {
		return nil, err
	}
	c.clients[name] = cl
	return cl, nil
}
