// Package toolclient implements ToolClientBase (spec §4.2): config
// loading, lifecycle, health probe, and retrying tool calls over an
// internal/transport.Client. Grounded on the teacher's
// pkg/common/retry/coordinator.go policy/circuit-breaker shape, with the
// hand-rolled circuit breaker there replaced by github.com/sony/gobreaker
// and the hand-rolled backoff math replaced by
// github.com/cenkalti/backoff/v4.
package toolclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"dbdecom/internal/errs"
	"dbdecom/internal/logging"
	"dbdecom/internal/transport"
)

// RetryPolicy matches spec §4.2's uniform retry contract.
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
	Jitter    float64 // fraction, e.g. 0.2 for ±20%
}

// DefaultRetryPolicy is spec §4.2's default: 3 retries, 1s base, 2x
// factor, ±20% jitter, 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:   3,
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
		Factor:    2.0,
		Jitter:    0.2,
	}
}

func (p RetryPolicy) backoffStrategy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Factor
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0 // caller bounds attempts, not elapsed wall time
	return backoff.WithMaxRetries(b, uint64(p.Retries))
}

// Base is the common machinery every typed tool client (packer, host,
// chat, filesystem) wraps.
type Base struct {
	ServerName string
	transport  *transport.Client
	logger     *logging.StructuredLogger
	policy     RetryPolicy
	breaker    *gobreaker.CircuitBreaker
}

// NewBase spawns the tool-server child process for spec and wires retry
// + circuit breaker.
func NewBase(ctx context.Context, serverName string, spec ServerSpec, logger *logging.StructuredLogger, policy RetryPolicy) (*Base, error) {
	resolved := ResolveEnv(spec)
	cl := transport.New(serverName)
	if err := cl.Start(ctx, resolved.Command, resolved.Args, resolved.EnvSlice()); err != nil {
		return nil, err
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serverName,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Base{
		ServerName: serverName,
		transport:  cl,
		logger:     logger,
		policy:     policy,
		breaker:    cb,
	}, nil
}

// ListAvailableTools calls the standard MCP `tools/list` method.
func (b *Base) ListAvailableTools(ctx context.Context) ([]string, error) {
	raw, err := b.callOnce(ctx, "tools/list", nil, 10*time.Second)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errs.Tool(b.ServerName, "malformed tools/list response", err)
	}
	names := make([]string, len(result.Tools))
	for i, t := range result.Tools {
		names[i] = t.Name
	}
	return names, nil
}

// HealthCheck reports whether the tool server still answers.
func (b *Base) HealthCheck(ctx context.Context) bool {
	_, err := b.callOnce(ctx, "tools/list", nil, 5*time.Second)
	return err == nil
}

// CallTool invokes a named tool with the given arguments, applying the
// retry policy and circuit breaker (spec §4.2). Only transport errors
// and the explicitly retryable tool errors are retried; deterministic
// errors (bad arguments, 404-equivalents) are not.
func (b *Base) CallTool(ctx context.Context, toolName string, args map[string]any) (transport.ContentEnvelope, error) {
	var envelope transport.ContentEnvelope

	operation := func() error {
		result, err := b.breakerCall(ctx, toolName, args)
		if err != nil {
			if !errs.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		envelope = result
		return nil
	}

	notify := func(err error, wait time.Duration) {
		if b.logger != nil {
			b.logger.Log(logging.LevelWarning, b.ServerName,
				fmt.Sprintf("retrying %s after error, waiting %s: %v", toolName, wait, err), nil)
		}
	}

	err := backoff.RetryNotify(operation, b.policy.backoffStrategy(), notify)
	if err != nil {
		return transport.ContentEnvelope{}, unwrapPermanent(err)
	}
	return envelope, nil
}

func unwrapPermanent(err error) error {
	if pe, ok := err.(*backoff.PermanentError); ok {
		return pe.Err
	}
	return err
}

func (b *Base) breakerCall(ctx context.Context, toolName string, args map[string]any) (transport.ContentEnvelope, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		raw, err := b.callOnce(ctx, "tools/call", map[string]any{
			"name":      toolName,
			"arguments": args,
		}, 30*time.Second)
		if err != nil {
			return nil, err
		}
		var envelope transport.ContentEnvelope
		if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Content) > 0 {
			return envelope, nil
		}
		// Raw object result alternative (spec §6): wrap so callers see it
		// as a single text item containing the raw JSON.
		return transport.ContentEnvelope{Content: []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: string(raw)}}}, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return transport.ContentEnvelope{}, errs.ToolRetryable(b.ServerName, "circuit breaker open for "+toolName, err)
		}
		return transport.ContentEnvelope{}, err
	}
	return result.(transport.ContentEnvelope), nil
}

func (b *Base) callOnce(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	return b.transport.Call(ctx, method, params, timeout)
}

// Close stops the underlying child process.
func (b *Base) Close() error {
	return b.transport.Stop(5 * time.Second)
}
