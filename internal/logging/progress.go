package logging

import (
	"fmt"
	"strings"
	"time"
)

const progressBarWidth = 24

// StartStep begins progress tracking for stepName and prints an empty
// bar line with status "started".
func (l *StructuredLogger) StartStep(stepName string) {
	l.mu.Lock()
	l.progress[stepName] = &progressState{prevTime: time.Now()}
	l.mu.Unlock()

	l.emitProgress(stepName, ProgressPayload{StepName: stepName, Status: ProgressStarted})
}

// UpdateProgress recomputes rate as (current-prevCurrent)/(now-prevTime)
// and ETA as (total-current)/rate when rate > 0, per spec §4.4. It
// always emits a fresh line — no animated redraws.
func (l *StructuredLogger) UpdateProgress(stepName string, current, total int64) {
	now := time.Now()

	l.mu.Lock()
	state, ok := l.progress[stepName]
	if !ok {
		state = &progressState{prevTime: now}
		l.progress[stepName] = state
	}
	elapsed := now.Sub(state.prevTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(current-state.prevCurrent) / elapsed
	}
	state.prevCurrent = current
	state.prevTime = now
	l.mu.Unlock()

	payload := ProgressPayload{
		StepName: stepName,
		Status:   ProgressRunning,
		Current:  &current,
		Total:    &total,
	}
	if total > 0 {
		pct := float64(current) / float64(total) * 100
		payload.Percent = &pct
	}
	if rate > 0 {
		payload.Rate = &rate
		if total > current {
			eta := time.Duration(float64(total-current)/rate) * time.Second
			payload.ETA = &eta
		}
	}
	l.emitProgress(stepName, payload)
}

// CompleteStep marks stepName completed or failed.
func (l *StructuredLogger) CompleteStep(stepName string, failed bool) {
	l.mu.Lock()
	delete(l.progress, stepName)
	l.mu.Unlock()

	status := ProgressCompleted
	if failed {
		status = ProgressFailed
	}
	l.emitProgress(stepName, ProgressPayload{StepName: stepName, Status: status})
}

func (l *StructuredLogger) emitProgress(stepName string, p ProgressPayload) {
	l.logPayload(StructuredPayload{Kind: PayloadProgress, Title: stepName, Progress: &p})

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console, renderProgressLine(p))
}

func renderProgressLine(p ProgressPayload) string {
	var bar string
	if p.Percent != nil {
		filled := int(*p.Percent / 100 * progressBarWidth)
		if filled > progressBarWidth {
			filled = progressBarWidth
		}
		bar = strings.Repeat("▓", filled) + strings.Repeat("░", progressBarWidth-filled)
	} else {
		bar = strings.Repeat("░", progressBarWidth)
	}

	line := fmt.Sprintf("[%s] %s %s", bar, p.StepName, p.Status)
	if p.Percent != nil {
		line += fmt.Sprintf(" %.0f%%", *p.Percent)
	}
	if p.Current != nil && p.Total != nil {
		line += fmt.Sprintf(" (%d/%d)", *p.Current, *p.Total)
	}
	if p.Rate != nil {
		line += fmt.Sprintf(" %.1f/s", *p.Rate)
	}
	if p.ETA != nil {
		line += fmt.Sprintf(" eta %s", p.ETA.Round(time.Second))
	}
	return line
}
