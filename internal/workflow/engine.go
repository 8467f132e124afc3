package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dbdecom/internal/errs"
	"dbdecom/internal/logging"
)

// ToolInvoker is how the engine reaches Tool-kind steps without
// importing any concrete tool client package (internal/decommission
// supplies the real implementation backed by internal/toolclient/*).
type ToolInvoker interface {
	InvokeTool(ctx context.Context, wfCtx *Context, serverName, toolName string, params map[string]any) (any, error)
}

// Execute runs the workflow to completion against wfCtx, honoring
// max_parallel_steps, per-step timeouts and retries, and stop_on_error,
// per spec §4.6.
func (w *Workflow) Execute(ctx context.Context, wfCtx *Context, invoker ToolInvoker, logger *logging.StructuredLogger, workflowID string) *Result {
	start := time.Now()

	sem := make(chan struct{}, w.Config.MaxParallelSteps)
	var mu sync.Mutex
	completed := make(map[string]bool)
	failed := make(map[string]bool)
	skipped := make(map[string]bool)
	stopRequested := false

	stepIndexOf := make(map[string]int, len(w.order))
	for i, id := range w.order {
		stepIndexOf[id] = i
	}

	remaining := make(map[string]*Step, len(w.Steps))
	for id, s := range w.Steps {
		remaining[id] = s
	}

	for len(remaining) > 0 {
		mu.Lock()
		var ready []*Step
		for id, step := range remaining {
			if stopRequested {
				skipped[id] = true
				delete(remaining, id)
				continue
			}
			if allSatisfied(step.DependsOn, completed) {
				ready = append(ready, step)
			} else if anyFailed(step.DependsOn, failed) || anySkipped(step.DependsOn, skipped) {
				skipped[id] = true
				delete(remaining, id)
			}
		}
		for _, step := range ready {
			delete(remaining, step.ID)
		}
		mu.Unlock()

		if len(ready) == 0 {
			if len(remaining) == 0 {
				break
			}
			// Nothing ready and nothing skippable this round but steps
			// remain: their deps are still in-flight from a previous
			// cohort boundary is impossible here since we process level
			// by level; guard against infinite loop defensively.
			break
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for _, step := range ready {
			step := step
			sem <- struct{}{}
			group.Go(func() error {
				defer func() { <-sem }()
				result := w.runStep(groupCtx, wfCtx, invoker, logger, workflowID, step, stepIndexOf[step.ID])

				mu.Lock()
				defer mu.Unlock()
				wfCtx.setResult(result)
				switch result.Outcome {
				case OutcomeCompleted:
					completed[step.ID] = true
				case OutcomeFailed:
					failed[step.ID] = true
					if w.Config.StopOnError {
						stopRequested = true
					}
				}
				return nil
			})
		}
		_ = group.Wait()
	}

	return w.summarize(workflowID, start, completed, failed, skipped)
}

func allSatisfied(deps []string, completed map[string]bool) bool {
	for _, d := range deps {
		if !completed[d] {
			return false
		}
	}
	return true
}

func anyFailed(deps []string, failed map[string]bool) bool {
	for _, d := range deps {
		if failed[d] {
			return true
		}
	}
	return false
}

func anySkipped(deps []string, skipped map[string]bool) bool {
	for _, d := range deps {
		if skipped[d] {
			return true
		}
	}
	return false
}

func (w *Workflow) runStep(ctx context.Context, wfCtx *Context, invoker ToolInvoker, logger *logging.StructuredLogger, workflowID string, step *Step, stepIndex int) StepResult {
	if logger != nil {
		logger.LogStepStart(stepIndex, step.ID, step.Name)
		logger.StartStep(step.ID)
	}

	started := time.Now()
	var lastErr error
	var value any
	retries := 0

	maxAttempts := step.RetryCount + 1
retryLoop:
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			retries++
			if step.DelaySeconds > 0 {
				select {
				case <-time.After(step.DelaySeconds):
				case <-ctx.Done():
					lastErr = ctx.Err()
					break retryLoop
				}
			}
			if logger != nil {
				logger.Log(logging.LevelWarning, "workflow", fmt.Sprintf("retrying step %s (attempt %d/%d): %v", step.ID, attempt+1, maxAttempts, lastErr), nil)
			}
		}

		stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
		value, lastErr = w.invokeStep(stepCtx, wfCtx, invoker, step)
		cancel()

		if lastErr == nil {
			break
		}
		if !errs.IsRetryable(lastErr) {
			break
		}
	}

	duration := time.Since(started)
	if logger != nil {
		logger.LogStepComplete(stepIndex, step.ID, duration, lastErr)
		logger.CompleteStep(step.ID, lastErr != nil)
	}

	if lastErr != nil {
		return StepResult{StepID: step.ID, Outcome: OutcomeFailed, Err: lastErr, Retries: retries, Duration: duration}
	}
	return StepResult{StepID: step.ID, Outcome: OutcomeCompleted, Value: value, Retries: retries, Duration: duration}
}

func (w *Workflow) invokeStep(ctx context.Context, wfCtx *Context, invoker ToolInvoker, step *Step) (any, error) {
	switch step.Kind {
	case KindTool:
		if invoker == nil {
			return nil, errs.Validation("workflow", "no ToolInvoker configured for tool step "+step.ID, nil)
		}
		return invoker.InvokeTool(ctx, wfCtx, step.ServerName, step.ToolName, step.Parameters)

	case KindCustom:
		fn, ok := w.registry.step(step.FuncName)
		if !ok {
			return nil, errs.Validation("workflow", "no registered step function named "+step.FuncName, nil)
		}
		return fn(ctx, wfCtx, step.Parameters)

	case KindConditional:
		fn, ok := w.registry.condition(step.FuncName)
		if !ok {
			return nil, errs.Validation("workflow", "no registered condition function named "+step.FuncName, nil)
		}
		ok2, err := fn(ctx, wfCtx, step.Parameters)
		if err != nil {
			return nil, err
		}
		return ok2, nil

	default:
		return nil, errs.Validation("workflow", "unknown step kind for "+step.ID, nil)
	}
}

func (w *Workflow) summarize(workflowID string, start time.Time, completed, failed, skipped map[string]bool) *Result {
	stepResults := make(map[string]StepResult, len(w.Steps))
	for id := range w.Steps {
		switch {
		case completed[id]:
			stepResults[id] = StepResult{StepID: id, Outcome: OutcomeCompleted}
		case failed[id]:
			stepResults[id] = StepResult{StepID: id, Outcome: OutcomeFailed}
		case skipped[id]:
			stepResults[id] = StepResult{StepID: id, Outcome: OutcomeSkipped}
		default:
			stepResults[id] = StepResult{StepID: id, Outcome: OutcomeSkipped}
		}
	}

	total := len(completed) + len(failed) + len(skipped)
	var successRate float64
	if total > 0 {
		successRate = float64(len(completed)) / float64(total) * 100
	}

	status := StatusCompleted
	switch {
	case len(failed) > 0 && w.Config.StopOnError:
		status = StatusFailed
	case len(failed) > 0 || len(skipped) > 0:
		status = StatusPartial
	}

	return &Result{
		WorkflowID:  workflowID,
		Status:      status,
		Duration:    time.Since(start),
		StepResults: stepResults,
		SuccessRate: successRate,
	}
}
