package archive

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `<repository url="https://example.com/repo.git" packed_at="2026-01-01T00:00:00Z">
  <file path="config/app.yaml"><![CDATA[
database_url: postgres://user@billing_db:5432/app
other_key: value
]]></file>
  <file path="README.md"><![CDATA[
This service talks to billing_db for invoices.
]]></file>
  <file path="unrelated.py"><![CDATA[
print("hello")
]]></file>
</repository>`

func TestParse(t *testing.T) {
	files, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3", len(files))
	}
	if files[0].Path != "config/app.yaml" {
		t.Errorf("first file path = %q", files[0].Path)
	}
}

func TestExtract(t *testing.T) {
	root := t.TempDir()
	root = filepath.Join(root, "pattern_match")

	ext := New(root)
	matched, err := ext.Extract([]byte(sample), "billing_db")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("got %d matched files, want 2 (config/app.yaml and README.md)", len(matched))
	}

	for _, m := range matched {
		if _, err := os.Stat(m.ExtractedCopyPath); err != nil {
			t.Errorf("quarantine copy missing for %s: %v", m.OriginalPath, err)
		}
		if len(m.Matches) == 0 {
			t.Errorf("expected at least one match span for %s", m.OriginalPath)
		}
	}
}
