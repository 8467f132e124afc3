// Command dbdecommission drives spec §4.12's DecommissionWorkflow
// end to end: resolve environment parameters, build the workflow,
// run it, and map the result to the exit codes of spec §6. Grounded
// on cmd/root.go's flag+signal.NotifyContext wiring, deliberately
// without a cobra command tree — CLI argument parsing beyond a flat
// flag set is out of scope for this driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dbdecom/internal/decommission"
	"dbdecom/internal/logging"
	"dbdecom/internal/parameters"
	"dbdecom/internal/workflow"
)

func main() {
	os.Exit(run())
}

func run() int {
	serverConfigPath := flag.String("server-config", "ovr.servers.json", "path to the mcpServers tool-server configuration document")
	dotenvPath := flag.String("dotenv", ".env", "optional dotenv file")
	secretsPath := flag.String("secrets", "", "optional JSON secrets file")
	quarantineRoot := flag.String("quarantine-root", "tests/tmp/pattern_match", "root directory for quarantined matched-file copies")
	ticketID := flag.String("ticket", "", "ticket id recorded in the decommission header and commit messages")
	contact := flag.String("contact", "", "contact address recorded in the decommission header")
	maxParallelRepos := flag.Int("max-parallel-repos", 2, "bounded fan-out across target repositories")
	stopOnError := flag.Bool("stop-on-error", true, "stop the step DAG on the first failed step (SPEC_FULL.md Open Questions decision #1)")
	flag.Parse()

	paramSvc, err := parameters.Load(*dotenvPath, *secretsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	database, err := paramSvc.Require("DATABASE_NAME")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	repoList, err := paramSvc.Require("TARGET_REPOSITORY_URLS")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	repos, err := parseRepos(repoList)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg := decommission.Config{
		Database:         database,
		TicketID:         *ticketID,
		Contact:          *contact,
		Repos:            repos,
		ServerConfigPath: *serverConfigPath,
		DotenvPath:       *dotenvPath,
		SecretsPath:      *secretsPath,
		QuarantineRoot:   *quarantineRoot,
		MaxParallelRepos: *maxParallelRepos,
		StopOnError:      *stopOnError,
	}

	runID := "db-decommission-" + time.Now().UTC().Format("20060102T150405Z")
	logger := logging.New(runID, logging.DefaultFileSinkConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := decommission.Run(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if ctx.Err() != nil {
		return 3
	}
	if result.Status == workflow.StatusCompleted {
		return 0
	}
	return 2
}

// parseRepos parses TARGET_REPOSITORY_URLS as a comma-separated list of
// "owner/repo=clone-url" entries.
func parseRepos(raw string) ([]decommission.RepoRequest, error) {
	parts := strings.Split(raw, ",")
	repos := make([]decommission.RepoRequest, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ownerRepo, url, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("malformed TARGET_REPOSITORY_URLS entry %q, want owner/repo=url", p)
		}
		owner, name, ok := strings.Cut(ownerRepo, "/")
		if !ok {
			return nil, fmt.Errorf("malformed TARGET_REPOSITORY_URLS entry %q, want owner/repo=url", p)
		}
		repos = append(repos, decommission.RepoRequest{URL: url, Owner: owner, Name: name})
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("TARGET_REPOSITORY_URLS resolved to zero target repositories")
	}
	return repos, nil
}
