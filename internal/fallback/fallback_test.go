package fallback

import (
	"strings"
	"testing"
)

func TestAssignStrategy(t *testing.T) {
	tests := map[string]Strategy{
		"infra/main.tf":        StrategyInfrastructure,
		"helm/values.yaml":     StrategyInfrastructure,
		"config/app.yaml":      StrategyConfiguration,
		"app/views.py":         StrategyCode,
		"scripts/migrate.sh":   StrategyCode,
		"README.md":            StrategyDocumentation,
	}
	for path, want := range tests {
		if got := AssignStrategy(path); got != want {
			t.Errorf("AssignStrategy(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestProcessConfiguration(t *testing.T) {
	p := New("billing_db")
	r := p.Process("repo", "config/app.yaml", "host: billing_db\nother: 1\n")
	if !strings.Contains(r.Content, "# host: billing_db") {
		t.Errorf("expected commented line, got:\n%s", r.Content)
	}
	if r.OutputPath != "repo_decommissioned/config/app.yaml" {
		t.Errorf("OutputPath = %q", r.OutputPath)
	}
}

func TestProcessCode(t *testing.T) {
	p := New("billing_db")
	r := p.Process("repo", "app.py", "def f():\n    return billing_db\n")
	if !strings.Contains(r.Content, "raise RuntimeError") {
		t.Errorf("expected raise injection, got:\n%s", r.Content)
	}
	if !strings.Contains(r.Content, "# def f():") {
		t.Errorf("expected original code preserved as comments, got:\n%s", r.Content)
	}
}
