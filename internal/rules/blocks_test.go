package rules

import (
	"strings"
	"testing"

	"dbdecom/internal/classify"
)

func TestApplyTerraformCommentsWholeResourceBlock(t *testing.T) {
	e := New("JIRA-123", "data-platform@example.com")
	out, err := e.Apply(Input{
		Path: "infra/main.tf",
		Content: "resource \"aws_db_instance\" \"billing_db\" {\n" +
			"  identifier = \"billing_db\"\n" +
			"  engine     = \"postgres\"\n" +
			"}\n" +
			"resource \"aws_s3_bucket\" \"other\" {\n" +
			"  bucket = \"unrelated\"\n" +
			"}\n",
		SourceType:     classify.Infrastructure,
		FrameworkHints: []string{"terraform"},
		Database:       "billing_db",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out.Content, "# resource \"aws_db_instance\" \"billing_db\" {") {
		t.Errorf("expected opening brace line commented out, got:\n%s", out.Content)
	}
	if !strings.Contains(out.Content, "  # engine     = \"postgres\"") {
		t.Errorf("expected every line of the block commented out, got:\n%s", out.Content)
	}
	if !strings.Contains(out.Content, "# }") {
		t.Errorf("expected closing brace line commented out, got:\n%s", out.Content)
	}
	if strings.Contains(out.Content, "\nresource \"aws_s3_bucket\"") == false {
		t.Errorf("unrelated block should survive verbatim, got:\n%s", out.Content)
	}
	if strings.Contains(out.Content, "# bucket = \"unrelated\"") {
		t.Errorf("unrelated block must not be touched, got:\n%s", out.Content)
	}
}

func TestApplyYAMLCommentsWholeResourceBlock(t *testing.T) {
	e := New("JIRA-123", "data-platform@example.com")
	out, err := e.Apply(Input{
		Path: "k8s/statefulset.yaml",
		Content: "resources:\n" +
			"  billing_db:\n" +
			"    engine: postgres\n" +
			"    storage: 20Gi\n" +
			"  other:\n" +
			"    engine: mysql\n",
		SourceType: classify.Infrastructure,
		Database:   "billing_db",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out.Content, "  # billing_db:") {
		t.Errorf("expected block's own key line commented, got:\n%s", out.Content)
	}
	if !strings.Contains(out.Content, "    # engine: postgres") {
		t.Errorf("expected every descendant line commented, got:\n%s", out.Content)
	}
	if !strings.Contains(out.Content, "    # storage: 20Gi") {
		t.Errorf("expected every descendant line commented, got:\n%s", out.Content)
	}
	if strings.Contains(out.Content, "# other:") || strings.Contains(out.Content, "    # engine: mysql") {
		t.Errorf("unrelated block must not be touched, got:\n%s", out.Content)
	}
}

func TestApplyPythonCommentsWholeFunctionBodyAndInjectsRaise(t *testing.T) {
	e := New("JIRA-123", "data-platform@example.com")
	out, err := e.Apply(Input{
		Path: "app/db.py",
		Content: "def fetch_billing_record(id):\n" +
			"    conn = connect(billing_db)\n" +
			"    row = conn.query(id)\n" +
			"    return row\n" +
			"\n" +
			"def unrelated():\n" +
			"    return 1\n",
		SourceType: classify.Python,
		Database:   "billing_db",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out.Content, "def fetch_billing_record(id):") {
		t.Errorf("expected def line to survive unchanged, got:\n%s", out.Content)
	}
	if !strings.Contains(out.Content, "raise RuntimeError(\"database billing_db was decommissioned") {
		t.Errorf("expected injected raise expression, got:\n%s", out.Content)
	}
	if !strings.Contains(out.Content, "    # conn = connect(billing_db)") {
		t.Errorf("expected original body line commented out, got:\n%s", out.Content)
	}
	if !strings.Contains(out.Content, "    # row = conn.query(id)") {
		t.Errorf("expected every original body line commented out, got:\n%s", out.Content)
	}
	if !strings.Contains(out.Content, "def unrelated():\n    return 1") {
		t.Errorf("unrelated function must survive untouched, got:\n%s", out.Content)
	}
}

func TestBraceBlockBounds(t *testing.T) {
	lines := strings.Split(
		"resource \"aws_db_instance\" \"billing_db\" {\n"+
			"  identifier = \"billing_db\"\n"+
			"}", "\n")
	start, end := braceBlockBounds(lines, 1)
	if start != 0 || end != 2 {
		t.Errorf("braceBlockBounds() = (%d, %d), want (0, 2)", start, end)
	}
}

func TestIndentBlockBounds(t *testing.T) {
	lines := strings.Split(
		"resources:\n"+
			"  billing_db:\n"+
			"    engine: postgres\n"+
			"  other:\n", "\n")
	start, end := indentBlockBounds(lines, 2)
	if start != 1 || end != 2 {
		t.Errorf("indentBlockBounds() = (%d, %d), want (1, 2)", start, end)
	}
}

func TestPythonFunctionBounds(t *testing.T) {
	lines := strings.Split(
		"def f():\n"+
			"    return 1\n"+
			"\n"+
			"def g():\n"+
			"    return 2\n", "\n")
	defIdx, bodyEnd, ok := pythonFunctionBounds(lines, 1)
	if !ok || defIdx != 0 || bodyEnd != 1 {
		t.Errorf("pythonFunctionBounds() = (%d, %d, %v), want (0, 1, true)", defIdx, bodyEnd, ok)
	}

	if _, _, ok := pythonFunctionBounds(lines, 2); ok {
		t.Errorf("pythonFunctionBounds() on blank top-level line should report not-ok")
	}
}
