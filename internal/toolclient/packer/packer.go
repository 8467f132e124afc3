// Package packer wraps the repository-packer tool server (spec §4.2).
package packer

import (
	"context"
	"encoding/json"
	"fmt"

	ignore "github.com/sabhiram/go-gitignore"

	"dbdecom/internal/errs"
	"dbdecom/internal/toolclient"
)

type Client struct {
	base *toolclient.Base
}

func New(base *toolclient.Base) *Client {
	return &Client{base: base}
}

type PackResult struct {
	ArchivePath string `json:"archive_path"`
	FileCount   int    `json:"file_count"`
	TotalSize   int64  `json:"total_size"`
}

// PackRemoteRepository packs a remote repository, optionally filtered by
// include/exclude glob patterns. Globs are validated client-side with
// go-gitignore's pattern syntax before crossing the RPC boundary, so an
// obviously malformed pattern fails fast without a round trip.
func (c *Client) PackRemoteRepository(ctx context.Context, url string, include, exclude []string) (PackResult, error) {
	if err := validateGlobs(include); err != nil {
		return PackResult{}, errs.Validation("packer", "invalid include_globs", err)
	}
	if err := validateGlobs(exclude); err != nil {
		return PackResult{}, errs.Validation("packer", "invalid exclude_globs", err)
	}

	args := map[string]any{"url": url}
	if len(include) > 0 {
		args["include_globs"] = include
	}
	if len(exclude) > 0 {
		args["exclude_globs"] = exclude
	}

	envelope, err := c.base.CallTool(ctx, "pack_remote_repository", args)
	if err != nil {
		return PackResult{}, err
	}
	return decodeResult(envelope.Text())
}

type CodebasePackResult struct {
	ArchivePath    string `json:"archive_path"`
	FileCount      int    `json:"file_count"`
	TotalSize      int64  `json:"total_size"`
	TopFilesLength int    `json:"top_files_length"`
}

// PackCodebase packs an already-checked-out local path.
func (c *Client) PackCodebase(ctx context.Context, localPath string, compress bool, topFilesLength int) (CodebasePackResult, error) {
	envelope, err := c.base.CallTool(ctx, "pack_codebase", map[string]any{
		"local_path":       localPath,
		"compress":         compress,
		"top_files_length": topFilesLength,
	})
	if err != nil {
		return CodebasePackResult{}, err
	}
	var result CodebasePackResult
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &result); jsonErr != nil {
		return CodebasePackResult{}, errs.Tool("packer", "malformed pack_codebase response", jsonErr)
	}
	return result, nil
}

type GrepMatch struct {
	Path        string `json:"path"`
	LineNumber  int    `json:"line_number"`
	MatchedText string `json:"matched_text"`
}

// GrepPackedOutput re-greps an already-packed archive, used by QA's
// "no residual references" check (spec §4.12).
func (c *Client) GrepPackedOutput(ctx context.Context, archivePath, pattern string, contextLines int) ([]GrepMatch, error) {
	envelope, err := c.base.CallTool(ctx, "grep_packed_output", map[string]any{
		"archive_path":  archivePath,
		"pattern":       pattern,
		"context_lines": contextLines,
	})
	if err != nil {
		return nil, err
	}
	var matches []GrepMatch
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &matches); jsonErr != nil {
		return nil, errs.Tool("packer", "malformed grep_packed_output response", jsonErr)
	}
	return matches, nil
}

func decodeResult(text string) (PackResult, error) {
	var result PackResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return PackResult{}, errs.Tool("packer", "malformed pack_remote_repository response", err)
	}
	return result, nil
}

// validateGlobs exercises each pattern through CompileIgnoreLines, which
// panics on a pattern it cannot turn into a regexp; recovering that panic
// is the only failure signal the library exposes (CompileIgnoreLines
// itself returns no error), so it's what "panic-free parse" actually
// checks. Actual matching happens server-side against the archive.
func validateGlobs(patterns []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid gitignore-style pattern: %v", r)
		}
	}()
	for _, p := range patterns {
		if p == "" {
			return fmt.Errorf("empty glob pattern")
		}
		ignore.CompileIgnoreLines(p)
	}
	return nil
}
