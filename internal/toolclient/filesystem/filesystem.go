// Package filesystem wraps the local filesystem tool server (spec §4.2).
// The server is configured with a single allowed root; paths outside it
// are rejected server-side, so this client passes paths through
// unmodified and surfaces whatever ToolError comes back.
package filesystem

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

func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	envelope, err := c.base.CallTool(ctx, "read_file", map[string]any{"path": path})
	if err != nil {
		return "", err
	}
	return envelope.Text(), nil
}

func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	_, err := c.base.CallTool(ctx, "write_file", map[string]any{"path": path, "content": content})
	return err
}

type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

func (c *Client) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	envelope, err := c.base.CallTool(ctx, "list_directory", map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &entries); jsonErr != nil {
		return nil, errs.Tool("filesystem", "malformed list_directory response", jsonErr)
	}
	return entries, nil
}

func (c *Client) CreateDirectory(ctx context.Context, path string) error {
	_, err := c.base.CallTool(ctx, "create_directory", map[string]any{"path": path})
	return err
}

func (c *Client) SearchFiles(ctx context.Context, root, pattern string) ([]string, error) {
	envelope, err := c.base.CallTool(ctx, "search_files", map[string]any{"root": root, "pattern": pattern})
	if err != nil {
		return nil, err
	}
	var paths []string
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &paths); jsonErr != nil {
		return nil, errs.Tool("filesystem", "malformed search_files response", jsonErr)
	}
	return paths, nil
}

func (c *Client) MoveFile(ctx context.Context, from, to string) error {
	_, err := c.base.CallTool(ctx, "move_file", map[string]any{"from": from, "to": to})
	return err
}
