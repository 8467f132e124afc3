// Package decommission composes the DecommissionWorkflow of spec §4.12:
// the concrete 4-step pipeline (validate_environment,
// process_repositories, quality_assurance, workflow_summary) built on
// internal/workflow, wiring internal/archive, internal/classify,
// internal/discovery, internal/rules, internal/fallback and the
// internal/toolclient/* tool clients together. Grounded on the
// top-level orchestration shape of the teacher's container_copilot.go
// (generate(): validate -> iterate -> deploy -> report).
package decommission

import (
	"dbdecom/internal/toolclient/chat"
	"dbdecom/internal/toolclient/host"
	"dbdecom/internal/toolclient/packer"
)

// Clients bundles the tool clients a run needs. Filesystem is omitted:
// spec §4.12's pipeline never touches the local filesystem tool server
// directly, only Packer/Host/Chat.
type Clients struct {
	Packer *packer.Client
	Host   *host.Client
	Chat   *chat.Client
}

// RepoRequest is one target repository for the run.
type RepoRequest struct {
	URL   string
	Owner string
	Name  string
}

// RepoOutcome is per-repository bookkeeping threaded through
// shared_values and read back by quality_assurance/workflow_summary.
type RepoOutcome struct {
	Repo            RepoRequest
	ArchivePath     string
	FilesMatched    int
	FilesCommitted  int
	Branch          string
	PullRequestURL  string
	ChatNotified    bool
	Skipped         bool
	Err             error
}

// QAReport is quality_assurance's output.
type QAReport struct {
	NoResidualReferences CheckResult
	RuleCompliance       CheckResult
	ServiceIntegrity     CheckResult
	CombinedScore        float64
}

// CheckResult is one QA check's outcome.
type CheckResult struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// Summary is workflow_summary's metrics payload.
type Summary struct {
	DurationSeconds float64
	FilesProcessed  int
	PullRequests    int
	SuccessRate     float64
	ChatFailures    int
}
