package decommission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dbdecom/internal/logging"
	"dbdecom/internal/workflow"
)

// Config is the static configuration a DecommissionWorkflow run needs,
// threaded into validate_environment's step parameters.
type Config struct {
	Database         string
	TicketID         string
	Contact          string
	Repos            []RepoRequest
	ServerConfigPath string
	DotenvPath       string
	SecretsPath      string
	QuarantineRoot   string
	MaxParallelRepos int

	// StopOnError sets the workflow's WorkflowConfig.stop_on_error (spec
	// §4.6). Per SPEC_FULL.md's Open Questions decision #1 this governs
	// only the step-level DAG (e.g. a validate_environment failure
	// already blocks every later step via its dependency chain); an
	// individual repository failure inside process_repositories never
	// fails that step itself, so quality_assurance and workflow_summary
	// always run over whatever repositories reached a terminal state.
	StopOnError bool
}

// NewWorkflow builds the concrete 4-step Workflow of spec §4.12.
func NewWorkflow(cfg Config) (*workflow.Workflow, error) {
	registry := workflow.NewRegistry()
	RegisterSteps(registry)

	params := map[string]any{
		"database":           cfg.Database,
		"ticket_id":          cfg.TicketID,
		"contact":            cfg.Contact,
		"repos":              cfg.Repos,
		"server_config_path": cfg.ServerConfigPath,
		"dotenv_path":        cfg.DotenvPath,
		"secrets_path":       cfg.SecretsPath,
		"quarantine_root":    cfg.QuarantineRoot,
		"max_parallel_repos": cfg.MaxParallelRepos,
	}

	b := workflow.NewBuilder("db-decommission", registry).
		WithConfig(4, 2*time.Minute, 0, cfg.StopOnError)

	b.CustomStep("validate_environment", "validate environment", "ValidateEnvironment", params,
		workflow.WithTimeout(30*time.Second), workflow.WithRetryCount(0))

	b.CustomStep("process_repositories", "process repositories", "ProcessRepositories", nil,
		workflow.WithTimeout(20*time.Minute), workflow.WithRetryCount(0),
		workflow.WithDependsOn("validate_environment"))

	b.CustomStep("quality_assurance", "quality assurance", "QualityAssurance", nil,
		workflow.WithTimeout(5*time.Minute), workflow.WithRetryCount(0),
		workflow.WithDependsOn("process_repositories"))

	b.CustomStep("workflow_summary", "workflow summary", "WorkflowSummary", nil,
		workflow.WithTimeout(30*time.Second), workflow.WithRetryCount(0),
		workflow.WithDependsOn("quality_assurance"))

	return b.Build()
}

// Run builds and executes the workflow, returning its Result.
func Run(ctx context.Context, cfg Config, logger *logging.StructuredLogger) (*workflow.Result, error) {
	wf, err := NewWorkflow(cfg)
	if err != nil {
		return nil, err
	}

	wfCtx := workflow.NewContext()
	wfCtx.Set(keyLogger, logger)

	runID := "db-decommission-" + time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()
	result := wf.Execute(ctx, wfCtx, nil, logger, runID)
	return result, nil
}
