package main

import "testing"

func TestParseRepos(t *testing.T) {
	repos, err := parseRepos("acme/billing=https://host/acme/billing.git, acme/orders=https://host/acme/orders.git")
	if err != nil {
		t.Fatalf("parseRepos: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("got %d repos, want 2", len(repos))
	}
	if repos[0].Owner != "acme" || repos[0].Name != "billing" || repos[0].URL != "https://host/acme/billing.git" {
		t.Errorf("repos[0] = %+v", repos[0])
	}
}

func TestParseReposRejectsMalformedEntries(t *testing.T) {
	if _, err := parseRepos("not-a-valid-entry"); err == nil {
		t.Fatal("expected error for entry missing '='")
	}
	if _, err := parseRepos("ownerwithoutslash=https://host/x.git"); err == nil {
		t.Fatal("expected error for entry missing owner/repo split")
	}
	if _, err := parseRepos(""); err == nil {
		t.Fatal("expected error for empty repo list")
	}
}
