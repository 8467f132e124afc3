package decommission

import (
	"testing"

	"dbdecom/internal/workflow"
)

func TestNewWorkflowStepsAndDependencies(t *testing.T) {
	cfg := Config{
		Database:         "billing_db",
		ServerConfigPath: "testdata/servers.json",
		MaxParallelRepos: 2,
	}

	wf, err := NewWorkflow(cfg)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	wantOrder := map[string][]string{
		"validate_environment": nil,
		"process_repositories": {"validate_environment"},
		"quality_assurance":    {"process_repositories"},
		"workflow_summary":     {"quality_assurance"},
	}
	if len(wf.Steps) != len(wantOrder) {
		t.Fatalf("got %d steps, want %d", len(wf.Steps), len(wantOrder))
	}
	for id, deps := range wantOrder {
		step, ok := wf.Steps[id]
		if !ok {
			t.Fatalf("missing step %q", id)
		}
		if step.Kind != workflow.KindCustom {
			t.Errorf("step %q Kind = %s, want Custom", id, step.Kind)
		}
		if len(step.DependsOn) != len(deps) {
			t.Errorf("step %q DependsOn = %v, want %v", id, step.DependsOn, deps)
		}
	}
}

func TestNewWorkflowBuildsAcyclicGraph(t *testing.T) {
	// NewWorkflow's own 4-step composition is fixed and acyclic; this
	// just pins that Build() succeeds for the pipeline's own wiring,
	// since a future edit introducing a dependency typo would otherwise
	// only surface at run time.
	cfg := Config{Database: "billing_db"}
	if _, err := NewWorkflow(cfg); err != nil {
		t.Fatalf("NewWorkflow must build a valid DAG: %v", err)
	}
}
