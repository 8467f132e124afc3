package decommission

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"dbdecom/internal/archive"
	"dbdecom/internal/classify"
	"dbdecom/internal/discovery"
	"dbdecom/internal/errs"
	"dbdecom/internal/fallback"
	"dbdecom/internal/logging"
	"dbdecom/internal/parameters"
	"dbdecom/internal/rules"
	"dbdecom/internal/toolclient"
	"dbdecom/internal/toolclient/chat"
	"dbdecom/internal/toolclient/host"
	"dbdecom/internal/toolclient/packer"
	"dbdecom/internal/workflow"
)

// Shared-value keys used to thread state between steps via
// WorkflowContext (spec §4.5's shared_values, namespaced per producer
// so sibling steps never race on the same key).
const (
	keyLogger         = "logger"
	keyClients        = "clients"
	keyDatabase       = "database"
	keyTicketID       = "ticket_id"
	keyContact        = "contact"
	keyQuarantineRoot = "quarantine_root"
	keyRepos          = "repos"
	keyMaxParallel    = "max_parallel_repos"
	keyRepoOutcomes   = "repo_outcomes"
	keyQAReport       = "qa_report"
	keyMetrics        = "metrics"
)

// RegisterSteps wires the four named step functions into registry.
// Per the "closures in steps" design constraint, every step body
// registered here is a package-scope function, never an inline
// closure, so structured logs naming a step id always resolve back to
// a function this registry knows about.
func RegisterSteps(registry *workflow.Registry) {
	registry.RegisterStep("ValidateEnvironment", ValidateEnvironment)
	registry.RegisterStep("ProcessRepositories", ProcessRepositories)
	registry.RegisterStep("QualityAssurance", QualityAssurance)
	registry.RegisterStep("WorkflowSummary", WorkflowSummary)
}

// ValidateEnvironment is spec §4.12 step 1: resolve required
// parameters, build tool clients, emit an environment-summary entry.
func ValidateEnvironment(ctx context.Context, wfCtx *workflow.Context, params map[string]any) (any, error) {
	logger, _ := wfCtx.Get(keyLogger)
	log, _ := logger.(*logging.StructuredLogger)

	database, _ := params["database"].(string)
	ticketID, _ := params["ticket_id"].(string)
	contact, _ := params["contact"].(string)
	quarantineRoot, _ := params["quarantine_root"].(string)
	serverConfigPath, _ := params["server_config_path"].(string)
	dotenvPath, _ := params["dotenv_path"].(string)
	secretsPath, _ := params["secrets_path"].(string)
	repos, _ := params["repos"].([]RepoRequest)
	maxParallelRepos, _ := params["max_parallel_repos"].(int)

	paramSvc, err := parameters.Load(dotenvPath, secretsPath)
	if err != nil {
		return nil, err
	}

	required := []parameters.RequiredSpec{
		{Name: "DB_HOST_API_TOKEN", Secret: true},
		{Name: "DB_CHAT_API_TOKEN", Secret: true, Optional: true},
		{Name: "CACHE_DIR", Optional: true, Default: os.TempDir()},
	}
	snapshot, err := paramSvc.Snapshot(required)
	if err != nil {
		return nil, err
	}

	serverCfg, err := toolclient.LoadServerConfig(serverConfigPath)
	if err != nil {
		return nil, err
	}

	clients, err := buildClients(ctx, serverCfg, log)
	if err != nil {
		return nil, err
	}

	wfCtx.Set(keyClients, clients)
	wfCtx.Set(keyDatabase, database)
	wfCtx.Set(keyTicketID, ticketID)
	wfCtx.Set(keyContact, contact)
	wfCtx.Set(keyQuarantineRoot, quarantineRoot)
	wfCtx.Set(keyRepos, repos)
	wfCtx.Set(keyMaxParallel, maxParallelRepos)
	wfCtx.Set(keyMetrics, logging.NewMetricsRegistry())

	if log != nil {
		dump := snapshot.RedactedDump()
		log.EnvironmentSummary(len(snapshot.Required)+len(snapshot.Optional), len(snapshot.Secrets), dump)
	}

	return snapshot, nil
}

func buildClients(ctx context.Context, serverCfg *toolclient.ServerConfig, log *logging.StructuredLogger) (*Clients, error) {
	policy := toolclient.DefaultRetryPolicy()

	packerBase, err := newBaseFor(ctx, serverCfg, "ovr_repomix", log, policy)
	if err != nil {
		return nil, err
	}
	hostBase, err := newBaseFor(ctx, serverCfg, "ovr_github", log, policy)
	if err != nil {
		return nil, err
	}
	chatBase, err := newBaseFor(ctx, serverCfg, "ovr_slack", log, policy)
	if err != nil {
		return nil, err
	}

	return &Clients{
		Packer: packer.New(packerBase),
		Host:   host.New(hostBase),
		Chat:   chat.New(chatBase),
	}, nil
}

func newBaseFor(ctx context.Context, serverCfg *toolclient.ServerConfig, name string, log *logging.StructuredLogger, policy toolclient.RetryPolicy) (*toolclient.Base, error) {
	spec, ok := serverCfg.MCPServers[name]
	if !ok {
		return nil, errs.Configuration("decommission", "tool-server configuration is missing "+name, nil)
	}
	return toolclient.NewBase(ctx, name, spec, log, policy)
}

// ProcessRepositories is spec §4.12 step 2: fan out per repository
// (bounded by max_parallel_repos), pack -> extract -> discover ->
// classify -> rules-or-fallback -> host write -> chat notify.
func ProcessRepositories(ctx context.Context, wfCtx *workflow.Context, params map[string]any) (any, error) {
	clientsAny, _ := wfCtx.Get(keyClients)
	clients, _ := clientsAny.(*Clients)
	database, _ := wfCtx.Get(keyDatabase)
	db, _ := database.(string)
	ticketID, _ := wfCtx.Get(keyTicketID)
	ticket, _ := ticketID.(string)
	contact, _ := wfCtx.Get(keyContact)
	contactAddr, _ := contact.(string)
	quarantineRoot, _ := wfCtx.Get(keyQuarantineRoot)
	qRoot, _ := quarantineRoot.(string)
	metricsAny, _ := wfCtx.Get(keyMetrics)
	metrics, _ := metricsAny.(*logging.MetricsRegistry)

	reposAny, _ := wfCtx.Get(keyRepos)
	repos, _ := reposAny.([]RepoRequest)
	maxParallelAny, _ := wfCtx.Get(keyMaxParallel)
	maxParallelRepos, _ := maxParallelAny.(int)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallel(maxParallelRepos))

	outcomes := make([]RepoOutcome, len(repos))
	for i, repo := range repos {
		i, repo := i, repo
		group.Go(func() error {
			outcomes[i] = processRepo(groupCtx, clients, db, ticket, contactAddr, qRoot, repo, metrics)
			return nil
		})
	}
	_ = group.Wait()

	wfCtx.Set(keyRepoOutcomes, outcomes)
	return outcomes, nil
}

// observeOutcome records a repository's terminal state against the
// run's metrics registry, used for nothing inside the workflow itself
// beyond the aggregate Snapshot WorkflowSummary logs.
func observeOutcome(metrics *logging.MetricsRegistry, outcome RepoOutcome) {
	if metrics == nil {
		return
	}
	switch {
	case outcome.Skipped:
		metrics.ObserveRepoOutcome("skipped")
	case outcome.Err != nil:
		metrics.ObserveRepoOutcome("failed")
	default:
		metrics.ObserveRepoOutcome("success")
	}
}

func maxParallel(n int) int {
	if n <= 0 {
		return 1
	}
	if n > 4 {
		return 4
	}
	return n
}

func processRepo(ctx context.Context, clients *Clients, database, ticketID, contact, quarantineRoot string, repo RepoRequest, metrics *logging.MetricsRegistry) RepoOutcome {
	outcome := RepoOutcome{Repo: repo}
	defer func() { observeOutcome(metrics, outcome) }()

	packResult, err := clients.Packer.PackRemoteRepository(ctx, repo.URL, nil, nil)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.ArchivePath = packResult.ArchivePath

	raw, err := os.ReadFile(packResult.ArchivePath)
	if err != nil {
		outcome.Err = errs.Tool("decommission", "reading packed archive", err)
		return outcome
	}

	extractor := archive.New(quarantineRoot)
	extracted, err := extractor.Extract(raw, database)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if len(extracted) == 0 {
		outcome.Skipped = true
		return outcome
	}

	engine := discovery.New(classify.New())
	matchedFiles := engine.Discover(extracted, database)
	outcome.FilesMatched = len(matchedFiles)
	if metrics != nil {
		metrics.AddFilesMatched(outcome.FilesMatched)
	}

	rulesEngine := rules.New(ticketID, contact)
	fallbackProcessor := fallback.New(database)

	shortSHA := fmt.Sprintf("%x", sha1.Sum([]byte(repo.URL+database)))[:7]
	branch := rules.BranchName(database, shortSHA)
	outcome.Branch = branch

	if err := clients.Host.CreateBranch(ctx, repo.Owner, repo.Name, "", branch); err != nil {
		outcome.Err = err
		return outcome
	}

	for i, mf := range matchedFiles {
		if len(mf.Matches) == 0 {
			continue
		}
		original := extracted[i]

		var content string
		out, err := rulesEngine.Apply(rules.Input{
			Path:           mf.OriginalPath,
			Content:        string(original.Content),
			SourceType:     mf.SourceType,
			FrameworkHints: mf.FrameworkHints,
			Database:       database,
		})
		if err != nil {
			fallbackResult := fallbackProcessor.Process(repo.Name, mf.OriginalPath, string(original.Content))
			content = fallbackResult.Content
		} else {
			content = out.Content
		}

		message := rules.CommitMessage(mf.SourceType, database, mf.OriginalPath)
		if _, err := clients.Host.CreateOrUpdateFile(ctx, repo.Owner, repo.Name, mf.OriginalPath, content, message, branch); err != nil {
			outcome.Err = err
			continue
		}
		outcome.FilesCommitted++
		if metrics != nil {
			metrics.AddFilesModified(1)
		}
	}

	pr, err := clients.Host.CreatePullRequest(ctx, repo.Owner, repo.Name,
		fmt.Sprintf("Decommission %s", database), branch, "main",
		fmt.Sprintf("Removes %d references to %s across %d files.", outcome.FilesMatched, database, outcome.FilesCommitted))
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.PullRequestURL = pr.URL

	notice := clients.Chat.PostMessage(ctx, "#decommissions",
		fmt.Sprintf("Decommissioned %s in %s: %d files changed. %s", database, repo.Name, outcome.FilesCommitted, pr.URL), "")
	outcome.ChatNotified = notice.OK
	if !notice.OK && metrics != nil {
		metrics.AddChatNotifyFailure()
	}

	return outcome
}

// QualityAssurance is spec §4.12 step 3: the three checks plus a
// combined score.
func QualityAssurance(ctx context.Context, wfCtx *workflow.Context, params map[string]any) (any, error) {
	clientsAny, _ := wfCtx.Get(keyClients)
	clients, _ := clientsAny.(*Clients)
	databaseAny, _ := wfCtx.Get(keyDatabase)
	database, _ := databaseAny.(string)
	outcomesAny, _ := wfCtx.Get(keyRepoOutcomes)
	outcomes, _ := outcomesAny.([]RepoOutcome)

	report := QAReport{
		NoResidualReferences: checkNoResidualReferences(ctx, clients, database, outcomes),
		RuleCompliance:       checkRuleCompliance(outcomes),
		ServiceIntegrity:     checkServiceIntegrity(ctx, clients, outcomes),
	}
	report.CombinedScore = scoreOf(report.NoResidualReferences) + scoreOf(report.RuleCompliance) + scoreOf(report.ServiceIntegrity)
	report.CombinedScore /= 3

	wfCtx.Set(keyQAReport, report)
	return report, nil
}

func scoreOf(c CheckResult) float64 {
	switch {
	case c.Passed:
		return 1.0
	case c.Warning:
		return 0.5
	default:
		return 0.0
	}
}

func checkNoResidualReferences(ctx context.Context, clients *Clients, database string, outcomes []RepoOutcome) CheckResult {
	total := 0
	for _, o := range outcomes {
		if o.Skipped || o.Err != nil || o.ArchivePath == "" {
			continue
		}
		matches, err := clients.Packer.GrepPackedOutput(ctx, o.ArchivePath, database, 0)
		if err != nil {
			continue
		}
		total += len(matches)
	}
	if total == 0 {
		return CheckResult{Name: "no_residual_references", Passed: true}
	}
	return CheckResult{Name: "no_residual_references", Warning: true,
		Detail: fmt.Sprintf("%d residual reference(s) remain, likely inside comment_out'd lines", total)}
}

func checkRuleCompliance(outcomes []RepoOutcome) CheckResult {
	for _, o := range outcomes {
		if o.Skipped || o.Err != nil {
			continue
		}
		if o.FilesMatched > 0 && o.FilesCommitted < o.FilesMatched {
			return CheckResult{Name: "rule_compliance", Passed: false,
				Detail: fmt.Sprintf("%s: committed %d/%d matched files", o.Repo.Name, o.FilesCommitted, o.FilesMatched)}
		}
	}
	return CheckResult{Name: "rule_compliance", Passed: true}
}

func checkServiceIntegrity(ctx context.Context, clients *Clients, outcomes []RepoOutcome) CheckResult {
	for _, o := range outcomes {
		if o.Skipped || o.Err != nil {
			continue
		}
		if _, err := clients.Host.AnalyzeRepoStructure(ctx, o.Repo.Owner, o.Repo.Name); err != nil {
			// advisory only, per the locked Open Question decision.
			return CheckResult{Name: "service_integrity", Warning: true, Detail: err.Error()}
		}
	}
	return CheckResult{Name: "service_integrity", Passed: true}
}

// WorkflowSummary is spec §4.12 step 4: aggregate metrics and emit
// them as a final metrics payload.
func WorkflowSummary(ctx context.Context, wfCtx *workflow.Context, params map[string]any) (any, error) {
	logger, _ := wfCtx.Get(keyLogger)
	log, _ := logger.(*logging.StructuredLogger)

	outcomesAny, _ := wfCtx.Get(keyRepoOutcomes)
	outcomes, _ := outcomesAny.([]RepoOutcome)
	qaAny, _ := wfCtx.Get(keyQAReport)
	qa, _ := qaAny.(QAReport)
	metricsAny, _ := wfCtx.Get(keyMetrics)
	metrics, _ := metricsAny.(*logging.MetricsRegistry)

	var filesProcessed, prsOpened, succeeded, chatFailures int
	for _, o := range outcomes {
		filesProcessed += o.FilesCommitted
		if o.PullRequestURL != "" {
			prsOpened++
			if !o.ChatNotified {
				chatFailures++
			}
		}
		if o.Err == nil && !o.Skipped {
			succeeded++
		}
	}

	var successRate float64
	if len(outcomes) > 0 {
		successRate = float64(succeeded) / float64(len(outcomes)) * 100
	}

	processResult, _ := wfCtx.StepResult("process_repositories")

	summary := Summary{
		DurationSeconds: processResult.Duration.Seconds(),
		FilesProcessed:  filesProcessed,
		PullRequests:    prsOpened,
		SuccessRate:     successRate,
		ChatFailures:    chatFailures,
	}

	if log != nil {
		payload := map[string]float64{
			"duration_seconds": summary.DurationSeconds,
			"files_processed":  float64(summary.FilesProcessed),
			"pull_requests":    float64(summary.PullRequests),
			"success_rate":     summary.SuccessRate,
			"qa_score":         qa.CombinedScore,
			"chat_failures":    float64(summary.ChatFailures),
		}
		if metrics != nil {
			for k, v := range metrics.Snapshot() {
				payload[k] = v
			}
		}
		log.LogMetrics(payload, "workflow summary")
	}

	return summary, nil
}
