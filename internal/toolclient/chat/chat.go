// Package chat wraps the chat tool server (spec §4.2). Chat is advisory:
// every method here fails soft — a structured {ok:false, error} result,
// or a false second return value for ListChannels and GetChannelHistory,
// never a propagated error — so a chat outage never blocks the pipeline
// (spec §8 "a chat-client outage must not prevent workflow completion").
package chat

import (
	"context"
	"encoding/json"

	"dbdecom/internal/toolclient"
)

type Client struct {
	base *toolclient.Base
}

func New(base *toolclient.Base) *Client {
	return &Client{base: base}
}

// Result is the uniform soft-fail shape every chat operation returns.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (c *Client) ListChannels(ctx context.Context) ([]string, bool) {
	envelope, err := c.base.CallTool(ctx, "list_channels", nil)
	if err != nil {
		return nil, false
	}
	var channels []string
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &channels); jsonErr != nil {
		return nil, false
	}
	return channels, true
}

// PostResult adds a thread timestamp to Result for PostMessage.
type PostResult struct {
	Result
	TS string `json:"ts,omitempty"`
}

func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) PostResult {
	args := map[string]any{"channel": channel, "text": text}
	if threadTS != "" {
		args["thread_ts"] = threadTS
	}
	envelope, err := c.base.CallTool(ctx, "post_message", args)
	if err != nil {
		return PostResult{Result: Result{OK: false, Error: err.Error()}}
	}
	var result PostResult
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &result); jsonErr != nil {
		return PostResult{Result: Result{OK: false, Error: jsonErr.Error()}}
	}
	return result
}

func (c *Client) ReplyToThread(ctx context.Context, channel, threadTS, text string) Result {
	_, err := c.base.CallTool(ctx, "reply_to_thread", map[string]any{
		"channel": channel, "thread_ts": threadTS, "text": text,
	})
	if err != nil {
		return Result{OK: false, Error: err.Error()}
	}
	return Result{OK: true}
}

func (c *Client) AddReaction(ctx context.Context, channel, ts, emoji string) Result {
	_, err := c.base.CallTool(ctx, "add_reaction", map[string]any{
		"channel": channel, "ts": ts, "emoji": emoji,
	})
	if err != nil {
		return Result{OK: false, Error: err.Error()}
	}
	return Result{OK: true}
}

type HistoryMessage struct {
	Text string  `json:"text"`
	User string  `json:"user"`
	TS   string  `json:"ts"`
}

func (c *Client) GetChannelHistory(ctx context.Context, channel string, limit int) ([]HistoryMessage, bool) {
	envelope, err := c.base.CallTool(ctx, "get_channel_history", map[string]any{
		"channel": channel, "limit": limit,
	})
	if err != nil {
		return nil, false
	}
	var history []HistoryMessage
	if jsonErr := json.Unmarshal([]byte(envelope.Text()), &history); jsonErr != nil {
		return nil, false
	}
	return history, true
}
