package workflow

import (
	"context"
	"testing"
	"time"

	"dbdecom/internal/errs"
)

// recordingStep marks its own id as having run in wfCtx's shared values,
// so tests can assert which steps actually executed without capturing
// test-local state in a closure.
func recordingStep(ctx context.Context, wfCtx *Context, params map[string]any) (any, error) {
	wfCtx.Set("ran:"+params["id"].(string), true)
	return nil, nil
}

func alwaysFailStep(ctx context.Context, wfCtx *Context, params map[string]any) (any, error) {
	return nil, errs.Tool("test", "step failed", nil)
}

// alwaysFailRetryableStep fails every invocation with a retryable
// transport error, so the retry loop always proceeds into its
// inter-attempt delay instead of giving up after the first attempt.
func alwaysFailRetryableStep(ctx context.Context, wfCtx *Context, params map[string]any) (any, error) {
	return nil, errs.Transport("test", "transport down", nil)
}

// flakyOnceStep fails on its first invocation for a given step id with a
// retryable transport error, then succeeds on the next attempt. Attempt
// counts live in wfCtx's shared values (keyed per step id) rather than a
// captured variable, since retries re-invoke the same registered
// function.
func flakyOnceStep(ctx context.Context, wfCtx *Context, params map[string]any) (any, error) {
	key := "attempts:" + params["id"].(string)
	prev, _ := wfCtx.Get(key)
	count, _ := prev.(int)
	count++
	wfCtx.Set(key, count)
	if count == 1 {
		return nil, errs.Transport("test", "flaky transport", nil)
	}
	return "ok", nil
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.RegisterStep("recording", recordingStep)
	r.RegisterStep("always_fail", alwaysFailStep)
	r.RegisterStep("always_fail_retryable", alwaysFailRetryableStep)
	r.RegisterStep("flaky_once", flakyOnceStep)
	return r
}

func TestExecuteRunsIndependentStepsWhenDependencyFailsWithoutStopOnError(t *testing.T) {
	registry := newTestRegistry()
	b := NewBuilder("wf", registry).WithConfig(4, time.Second, 0, false)
	b.CustomStep("a", "a", "always_fail", nil)
	b.CustomStep("b", "b", "recording", map[string]any{"id": "b"}, WithDependsOn("a"))
	b.CustomStep("c", "c", "recording", map[string]any{"id": "c"})

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wfCtx := NewContext()
	result := wf.Execute(context.Background(), wfCtx, nil, nil, "run-1")

	if result.StepResults["a"].Outcome != OutcomeFailed {
		t.Errorf("expected step a to fail, got %v", result.StepResults["a"].Outcome)
	}
	if result.StepResults["b"].Outcome != OutcomeSkipped {
		t.Errorf("expected step b to be skipped (depends on failed a), got %v", result.StepResults["b"].Outcome)
	}
	if ran, _ := wfCtx.Get("ran:c"); ran != true {
		t.Error("expected independent step c to run even though a failed and stop_on_error is false")
	}
	if result.Status != StatusPartial {
		t.Errorf("expected StatusPartial, got %v", result.Status)
	}
}

func TestExecuteStopOnErrorSkipsDownstreamSteps(t *testing.T) {
	registry := newTestRegistry()
	b := NewBuilder("wf", registry).WithConfig(4, time.Second, 0, true)
	b.CustomStep("a", "a", "always_fail", nil)
	b.CustomStep("b", "b", "recording", map[string]any{"id": "b"}, WithDependsOn("a"))

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wfCtx := NewContext()
	result := wf.Execute(context.Background(), wfCtx, nil, nil, "run-2")

	if result.StepResults["a"].Outcome != OutcomeFailed {
		t.Errorf("expected step a to fail, got %v", result.StepResults["a"].Outcome)
	}
	if result.StepResults["b"].Outcome != OutcomeSkipped {
		t.Errorf("expected step b to be skipped, got %v", result.StepResults["b"].Outcome)
	}
	if result.Status != StatusFailed {
		t.Errorf("expected StatusFailed when stop_on_error is true and a step failed, got %v", result.Status)
	}
}

func TestExecuteRetriesRetryableErrorThenSucceeds(t *testing.T) {
	registry := newTestRegistry()
	b := NewBuilder("wf", registry).WithConfig(4, time.Second, 0, false)
	b.CustomStep("a", "a", "flaky_once", map[string]any{"id": "a"}, WithRetryCount(1))

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wfCtx := NewContext()
	result := wf.Execute(context.Background(), wfCtx, nil, nil, "run-3")

	if result.StepResults["a"].Outcome != OutcomeCompleted {
		t.Fatalf("expected step a to eventually complete, got %v", result.StepResults["a"].Outcome)
	}
	sr, ok := wfCtx.StepResult("a")
	if !ok {
		t.Fatal("expected a recorded StepResult for step a")
	}
	if sr.Retries != 1 {
		t.Errorf("expected exactly 1 retry, got %d", sr.Retries)
	}
}

func TestExecuteGivesUpAfterExhaustingRetries(t *testing.T) {
	registry := newTestRegistry()
	b := NewBuilder("wf", registry).WithConfig(4, time.Second, 0, false)
	b.CustomStep("a", "a", "always_fail_retryable", nil, WithRetryCount(2))

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wfCtx := NewContext()
	result := wf.Execute(context.Background(), wfCtx, nil, nil, "run-4")

	if result.StepResults["a"].Outcome != OutcomeFailed {
		t.Errorf("expected step a to fail, got %v", result.StepResults["a"].Outcome)
	}
	if sr, _ := wfCtx.StepResult("a"); sr.Retries != 2 {
		t.Errorf("expected both retries to be used, got %d", sr.Retries)
	}
}

// TestRunStepAbortsRetryOnContextCancellation exercises the retry loop's
// inter-attempt delay directly: a canceled context during that delay
// must abort the whole retry loop immediately rather than falling
// through to another invocation attempt.
func TestRunStepAbortsRetryOnContextCancellation(t *testing.T) {
	registry := newTestRegistry()
	b := NewBuilder("wf", registry).WithConfig(4, time.Second, 0, false)
	b.CustomStep("a", "a", "always_fail_retryable", nil, WithRetryCount(5), WithDelay(time.Hour))

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan StepResult, 1)
	go func() {
		done <- wf.runStep(ctx, NewContext(), nil, nil, "run-5", wf.Steps["a"], 0)
	}()

	// Let the first attempt fail and enter the retry delay, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		if result.Outcome != OutcomeFailed {
			t.Errorf("expected OutcomeFailed after cancellation, got %v", result.Outcome)
		}
		if result.Retries != 1 {
			t.Errorf("expected runStep to abort after the first retry's delay was canceled, got %d retries", result.Retries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runStep did not return promptly after context cancellation during a retry delay")
	}
}
