// Package host wraps the source-code host tool server (spec §4.2). There
// is no dedicated "get repository" call in the catalog — repository
// lookup routes through SearchRepositories.
package host

import (
	"context"
	"encoding/json"

	"dbdecom/internal/errs"
	"dbdecom/internal/toolclient"
)

type Client struct {
	base *toolclient.Base
}

func New(base *toolclient.Base) *Client {
	return &Client{base: base}
}

type Repository struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	URL      string `json:"url"`
}

func (c *Client) SearchRepositories(ctx context.Context, query string) ([]Repository, error) {
	envelope, err := c.base.CallTool(ctx, "search_repositories", map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	var repos []Repository
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &repos); jsonErr != nil {
		return nil, errs.Tool("host", "malformed search_repositories response", jsonErr)
	}
	return repos, nil
}

type RepoStructure struct {
	Languages    map[string]float64 `json:"languages"`
	FileTree     []string           `json:"file_tree"`
	Dependencies []string           `json:"dependencies"`
}

func (c *Client) AnalyzeRepoStructure(ctx context.Context, owner, repo string) (RepoStructure, error) {
	envelope, err := c.base.CallTool(ctx, "analyze_repo_structure", map[string]any{"owner": owner, "repo": repo})
	if err != nil {
		return RepoStructure{}, err
	}
	var structure RepoStructure
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &structure); jsonErr != nil {
		return RepoStructure{}, errs.Tool("host", "malformed analyze_repo_structure response", jsonErr)
	}
	return structure, nil
}

func (c *Client) GetFileContents(ctx context.Context, owner, repo, path, ref string) (string, error) {
	args := map[string]any{"owner": owner, "repo": repo, "path": path}
	if ref != "" {
		args["ref"] = ref
	}
	envelope, err := c.base.CallTool(ctx, "get_file_contents", args)
	if err != nil {
		return "", err
	}
	return envelope.Text(), nil
}

type CommitRef struct {
	SHA string `json:"sha"`
}

func (c *Client) CreateOrUpdateFile(ctx context.Context, owner, repo, path, content, message, branch string) (CommitRef, error) {
	envelope, err := c.base.CallTool(ctx, "create_or_update_file", map[string]any{
		"owner":   owner,
		"repo":    repo,
		"path":    path,
		"content": content,
		"message": message,
		"branch":  branch,
	})
	if err != nil {
		return CommitRef{}, err
	}
	var ref CommitRef
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &ref); jsonErr != nil {
		return CommitRef{}, errs.Tool("host", "malformed create_or_update_file response", jsonErr)
	}
	return ref, nil
}

func (c *Client) CreateBranch(ctx context.Context, owner, repo, fromRef, newBranch string) error {
	_, err := c.base.CallTool(ctx, "create_branch", map[string]any{
		"owner":      owner,
		"repo":       repo,
		"from_ref":   fromRef,
		"new_branch": newBranch,
	})
	return err
}

type PullRequest struct {
	URL string `json:"pr_url"`
}

func (c *Client) CreatePullRequest(ctx context.Context, owner, repo, title, head, base, body string) (PullRequest, error) {
	envelope, err := c.base.CallTool(ctx, "create_pull_request", map[string]any{
		"owner": owner,
		"repo":  repo,
		"title": title,
		"head":  head,
		"base":  base,
		"body":  body,
	})
	if err != nil {
		return PullRequest{}, err
	}
	var pr PullRequest
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &pr); jsonErr != nil {
		return PullRequest{}, errs.Tool("host", "malformed create_pull_request response", jsonErr)
	}
	return pr, nil
}
