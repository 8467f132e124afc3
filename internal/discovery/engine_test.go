package discovery

import (
	"testing"

	"dbdecom/internal/archive"
	"dbdecom/internal/classify"
)

func TestDiscoverConnectionString(t *testing.T) {
	files := []archive.ExtractedFile{
		{
			OriginalPath: "config/app.yaml",
			Content:      []byte("database_url: postgres://user@billing_db:5432/app\nother: value\n"),
		},
	}

	e := New(classify.New())
	results := e.Discover(files, "billing_db")
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.SourceType != classify.Configuration {
		t.Errorf("SourceType = %s, want Configuration", r.SourceType)
	}
	if len(r.Matches) == 0 {
		t.Fatalf("expected at least one match")
	}
	if r.Matches[0].Kind != KindConnectionString {
		t.Errorf("Kind = %s, want connection_string", r.Matches[0].Kind)
	}
	if r.Matches[0].Confidence < 0.6 || r.Matches[0].Confidence > 1.0 {
		t.Errorf("Confidence = %v, out of expected range", r.Matches[0].Confidence)
	}
}

func TestDiscoverCommentDownweighted(t *testing.T) {
	files := []archive.ExtractedFile{
		{
			OriginalPath: "app.py",
			Content:      []byte("# uses billing_db for reads\nx = 1\n"),
		},
	}

	e := New(classify.New())
	results := e.Discover(files, "billing_db")
	r := results[0]
	if len(r.Matches) == 0 {
		t.Fatalf("expected at least one match")
	}
	if r.Matches[0].Kind != KindCommentOnly {
		t.Errorf("Kind = %s, want comment_only", r.Matches[0].Kind)
	}
	if r.Matches[0].Confidence >= 0.8 {
		t.Errorf("Confidence = %v, want downweighted below 0.8", r.Matches[0].Confidence)
	}
}
