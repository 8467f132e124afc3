package workflow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"dbdecom/internal/errs"
)

func asValidationError(t *testing.T, err error) *errs.Error {
	t.Helper()
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected an *errs.Error, got %T: %v", err, err)
	}
	if e.Code != errs.CodeValidation {
		t.Fatalf("expected CodeValidation, got %v (%v)", e.Code, err)
	}
	return e
}

func TestBuildRejectsDuplicateStepID(t *testing.T) {
	b := NewBuilder("wf", NewRegistry())
	b.CustomStep("fetch", "fetch repo", "noop", nil)
	b.CustomStep("fetch", "fetch repo again", "noop", nil)

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected an error for a repeated step id, got nil")
	}
	e := asValidationError(t, err)
	if !strings.Contains(e.Message, `"fetch"`) {
		t.Errorf("expected the duplicate id named in the error, got %q", e.Message)
	}
}

func TestBuildKeepsFirstStepOnDuplicateID(t *testing.T) {
	b := NewBuilder("wf", NewRegistry())
	b.CustomStep("fetch", "first", "noop", map[string]any{"n": 1})
	b.CustomStep("fetch", "second", "noop", map[string]any{"n": 2})

	if _, err := b.Build(); err == nil {
		t.Fatal("expected Build to reject the duplicate id")
	}
	if got := b.steps["fetch"].Name; got != "first" {
		t.Errorf("addStep must not overwrite the first step on a repeat id, got Name=%q", got)
	}
}

func TestBuildRejectsCycleNamingBothSteps(t *testing.T) {
	b := NewBuilder("wf", NewRegistry())
	b.CustomStep("a", "step a", "noop", nil, WithDependsOn("b"))
	b.CustomStep("b", "step b", "noop", nil, WithDependsOn("a"))

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected a cycle to be rejected at build time, got nil")
	}
	e := asValidationError(t, err)
	if !strings.Contains(e.Message, "a") || !strings.Contains(e.Message, "b") {
		t.Errorf("expected both cyclic step ids named in the diagnostic, got %q", e.Message)
	}
}

func TestBuildRejectsZeroTimeout(t *testing.T) {
	b := NewBuilder("wf", NewRegistry())
	b.CustomStep("a", "step a", "noop", nil, WithTimeout(0))

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected a zero-timeout step to be rejected, got nil")
	}
	asValidationError(t, err)
}

func TestBuildRejectsMissingDependency(t *testing.T) {
	b := NewBuilder("wf", NewRegistry())
	b.CustomStep("a", "step a", "noop", nil, WithDependsOn("ghost"))

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected an unknown dependency to be rejected, got nil")
	}
	asValidationError(t, err)
}

func TestBuildRejectsToolStepMissingServerOrTool(t *testing.T) {
	b := NewBuilder("wf", NewRegistry())
	b.ToolStep("a", "broken tool step", "", "", nil)

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected a tool step with no server/tool name to be rejected, got nil")
	}
	asValidationError(t, err)
}

func TestBuildOrdersDependenciesTopologically(t *testing.T) {
	b := NewBuilder("wf", NewRegistry())
	b.CustomStep("c", "third", "noop", nil, WithDependsOn("b"))
	b.CustomStep("a", "first", "noop", nil)
	b.CustomStep("b", "second", "noop", nil, WithDependsOn("a"))

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	pos := make(map[string]int, len(wf.order))
	for i, id := range wf.order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("expected topological order a, b, c; got %v", wf.order)
	}
}

func TestWithConfigThreadsStopOnError(t *testing.T) {
	b := NewBuilder("wf", NewRegistry()).WithConfig(4, time.Minute, 1, true)
	b.CustomStep("a", "step a", "noop", nil)

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !wf.Config.StopOnError {
		t.Error("expected StopOnError to carry through WithConfig into the built Workflow")
	}
}
