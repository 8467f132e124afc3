package decommission

import (
	"context"
	"testing"

	"dbdecom/internal/logging"
	"dbdecom/internal/workflow"
)

func TestObserveOutcome(t *testing.T) {
	m := logging.NewMetricsRegistry()
	observeOutcome(m, RepoOutcome{Skipped: true})
	observeOutcome(m, RepoOutcome{Err: errTest{}})
	observeOutcome(m, RepoOutcome{})

	snap := m.Snapshot()
	if snap["dbdecom_repos_processed_total_skipped"] != 1 {
		t.Errorf("skipped count = %v, want 1", snap["dbdecom_repos_processed_total_skipped"])
	}
	if snap["dbdecom_repos_processed_total_failed"] != 1 {
		t.Errorf("failed count = %v, want 1", snap["dbdecom_repos_processed_total_failed"])
	}
	if snap["dbdecom_repos_processed_total_success"] != 1 {
		t.Errorf("success count = %v, want 1", snap["dbdecom_repos_processed_total_success"])
	}
}

func TestObserveOutcomeNilMetricsIsNoop(t *testing.T) {
	observeOutcome(nil, RepoOutcome{})
}

func TestMaxParallel(t *testing.T) {
	tests := map[int]int{0: 1, -1: 1, 1: 1, 3: 3, 4: 4, 10: 4}
	for in, want := range tests {
		if got := maxParallel(in); got != want {
			t.Errorf("maxParallel(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestScoreOf(t *testing.T) {
	tests := []struct {
		name string
		c    CheckResult
		want float64
	}{
		{"passed", CheckResult{Passed: true}, 1.0},
		{"warning", CheckResult{Warning: true}, 0.5},
		{"failed", CheckResult{}, 0.0},
	}
	for _, tt := range tests {
		if got := scoreOf(tt.c); got != tt.want {
			t.Errorf("%s: scoreOf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCheckRuleCompliance(t *testing.T) {
	ok := []RepoOutcome{
		{Repo: RepoRequest{Name: "a"}, FilesMatched: 3, FilesCommitted: 3},
		{Repo: RepoRequest{Name: "b"}, Skipped: true, FilesMatched: 5},
	}
	if r := checkRuleCompliance(ok); !r.Passed {
		t.Errorf("expected pass, got %+v", r)
	}

	bad := []RepoOutcome{
		{Repo: RepoRequest{Name: "c"}, FilesMatched: 4, FilesCommitted: 2},
	}
	if r := checkRuleCompliance(bad); r.Passed {
		t.Errorf("expected failure for under-committed repo, got %+v", r)
	}
}

func TestWorkflowSummaryAggregation(t *testing.T) {
	outcomes := []RepoOutcome{
		{PullRequestURL: "https://example.com/pr/1", FilesCommitted: 2},
		{Err: errTest{}},
	}

	wfCtx := workflow.NewContext()
	wfCtx.Set(keyRepoOutcomes, outcomes)
	got, err := WorkflowSummary(context.Background(), wfCtx, nil)
	if err != nil {
		t.Fatalf("WorkflowSummary: %v", err)
	}
	summary := got.(Summary)

	if summary.FilesProcessed != 2 || summary.PullRequests != 1 || summary.SuccessRate != 50 {
		t.Errorf("got files=%d prs=%d success_rate=%v, want 2/1/50", summary.FilesProcessed, summary.PullRequests, summary.SuccessRate)
	}
}

// TestWorkflowSummaryAggregatesChatFailures exercises S4 (a chat client
// outage): a repo whose pull request succeeded but whose chat
// notification failed must still count as a success overall, while
// contributing to the chat-failure tally so it surfaces in the summary
// metrics instead of silently disappearing.
func TestWorkflowSummaryAggregatesChatFailures(t *testing.T) {
	outcomes := []RepoOutcome{
		{PullRequestURL: "https://example.com/pr/1", FilesCommitted: 2, ChatNotified: false},
		{PullRequestURL: "https://example.com/pr/2", FilesCommitted: 1, ChatNotified: true},
	}

	wfCtx := workflow.NewContext()
	wfCtx.Set(keyRepoOutcomes, outcomes)
	got, err := WorkflowSummary(context.Background(), wfCtx, nil)
	if err != nil {
		t.Fatalf("WorkflowSummary: %v", err)
	}
	summary := got.(Summary)

	if summary.PullRequests != 2 || summary.SuccessRate != 100 {
		t.Errorf("got prs=%d success_rate=%v, want 2/100 (a failed chat notification must not fail the repo)", summary.PullRequests, summary.SuccessRate)
	}
	if summary.ChatFailures != 1 {
		t.Errorf("got chatFailures=%d, want 1", summary.ChatFailures)
	}

	metrics := logging.NewMetricsRegistry()
	for _, o := range outcomes {
		if o.PullRequestURL != "" && !o.ChatNotified {
			metrics.AddChatNotifyFailure()
		}
	}
	if got := metrics.Snapshot()["dbdecom_chat_notify_failures_total"]; got != 1 {
		t.Errorf("dbdecom_chat_notify_failures_total = %v, want 1", got)
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
