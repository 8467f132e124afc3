package workflow

import (
	"fmt"
	"time"

	"dbdecom/internal/errs"
)

// Builder is the fluent DAG constructor of spec §4.6.
type Builder struct {
	config   Config
	steps    map[string]*Step
	order    []string // insertion order, for deterministic error messages
	registry *Registry
	buildErr error // first duplicate-id error seen by addStep, surfaced by Build()
}

func NewBuilder(name string, registry *Registry) *Builder {
	return &Builder{
		config:   DefaultConfig(name),
		steps:    make(map[string]*Step),
		registry: registry,
	}
}

// WithConfig overrides the builder's WorkflowConfig.
func (b *Builder) WithConfig(maxParallel int, defaultTimeout time.Duration, defaultRetry int, stopOnError bool) *Builder {
	b.config.MaxParallelSteps = maxParallel
	b.config.DefaultTimeout = defaultTimeout
	b.config.DefaultRetryCount = defaultRetry
	b.config.StopOnError = stopOnError
	return b
}

type stepOption func(*Step)

func WithTimeout(d time.Duration) stepOption      { return func(s *Step) { s.Timeout = d } }
func WithRetryCount(n int) stepOption             { return func(s *Step) { s.RetryCount = n } }
func WithDelay(d time.Duration) stepOption        { return func(s *Step) { s.DelaySeconds = d } }
func WithDependsOn(ids ...string) stepOption      { return func(s *Step) { s.DependsOn = append(s.DependsOn, ids...) } }

// CustomStep adds a Custom-kind step backed by a Registry-resolved,
// named function (never an inline closure — see Design Note).
func (b *Builder) CustomStep(id, name, funcName string, params map[string]any, opts ...stepOption) *Builder {
	step := &Step{
		ID:         id,
		Name:       name,
		Kind:       KindCustom,
		FuncName:   funcName,
		Parameters: params,
		Timeout:    b.config.DefaultTimeout,
		RetryCount: b.config.DefaultRetryCount,
	}
	for _, opt := range opts {
		opt(step)
	}
	b.addStep(step)
	return b
}

// ConditionalStep adds a Conditional-kind step.
func (b *Builder) ConditionalStep(id, name, funcName string, params map[string]any, opts ...stepOption) *Builder {
	step := &Step{
		ID:         id,
		Name:       name,
		Kind:       KindConditional,
		FuncName:   funcName,
		Parameters: params,
		Timeout:    b.config.DefaultTimeout,
		RetryCount: b.config.DefaultRetryCount,
	}
	for _, opt := range opts {
		opt(step)
	}
	b.addStep(step)
	return b
}

// ToolStep adds a Tool-kind step invoking serverName/toolName.
func (b *Builder) ToolStep(id, name, serverName, toolName string, params map[string]any, opts ...stepOption) *Builder {
	step := &Step{
		ID:         id,
		Name:       name,
		Kind:       KindTool,
		ServerName: serverName,
		ToolName:   toolName,
		Parameters: params,
		Timeout:    b.config.DefaultTimeout,
		RetryCount: b.config.DefaultRetryCount,
	}
	for _, opt := range opts {
		opt(step)
	}
	b.addStep(step)
	return b
}

// PackRepo is a typed specialization of ToolStep for the packer server.
func (b *Builder) PackRepo(id, repoURL string, opts ...stepOption) *Builder {
	return b.ToolStep(id, "pack_repository", "ovr_repomix", "pack_remote_repository",
		map[string]any{"url": repoURL}, opts...)
}

// AnalyzeRepo is a typed specialization of ToolStep for the host server.
func (b *Builder) AnalyzeRepo(id, owner, repo string, opts ...stepOption) *Builder {
	return b.ToolStep(id, "analyze_repo_structure", "ovr_github", "analyze_repo_structure",
		map[string]any{"owner": owner, "repo": repo}, opts...)
}

// PostMessage is a typed specialization of ToolStep for the chat server.
func (b *Builder) PostMessage(id, channel, text string, opts ...stepOption) *Builder {
	return b.ToolStep(id, "post_message", "ovr_slack", "post_message",
		map[string]any{"channel": channel, "text": text}, opts...)
}

func (b *Builder) addStep(step *Step) {
	if _, exists := b.steps[step.ID]; exists {
		if b.buildErr == nil {
			b.buildErr = errs.Validation("workflow", fmt.Sprintf("duplicate step id %q", step.ID), nil)
		}
		return
	}
	b.order = append(b.order, step.ID)
	b.steps[step.ID] = step
}

// Build validates the graph (duplicate ids rejected first, as recorded
// by addStep, which keeps only the first step with a given id so a
// cycle/missing-dependency scan over b.steps would miss it; then missing
// dependencies and cycles via Kahn's algorithm) and returns the
// immutable Workflow.
func (b *Builder) Build() (*Workflow, error) {
	if b.buildErr != nil {
		return nil, b.buildErr
	}

	for _, step := range b.steps {
		if step.Timeout == 0 {
			return nil, errs.Validation("workflow", fmt.Sprintf("step %q has a zero timeout, which is rejected at build time", step.ID), nil)
		}
		for _, dep := range step.DependsOn {
			if _, ok := b.steps[dep]; !ok {
				return nil, errs.Validation("workflow", fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep), nil)
			}
		}
		if step.Kind == KindTool {
			if step.ServerName == "" || step.ToolName == "" {
				return nil, errs.Validation("workflow", fmt.Sprintf("tool step %q requires server_name and tool_name", step.ID), nil)
			}
		}
		if (step.Kind == KindCustom || step.Kind == KindConditional) && step.FuncName == "" {
			return nil, errs.Validation("workflow", fmt.Sprintf("custom/conditional step %q requires a registered func name", step.ID), nil)
		}
	}

	order, err := topologicalOrder(b.steps)
	if err != nil {
		return nil, err
	}

	return &Workflow{
		Config:   b.config,
		Steps:    b.steps,
		order:    order,
		registry: b.registry,
	}, nil
}

// topologicalOrder runs Kahn's algorithm. On a cycle it reports the
// involved edges by id, per spec §8 "A cycle A→B→A is rejected at build
// time with a diagnostic naming both edges."
func topologicalOrder(steps map[string]*Step) ([]string, error) {
	inDegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for id, step := range steps {
		if _, ok := inDegree[id]; !ok {
			inDegree[id] = 0
		}
		for _, dep := range step.DependsOn {
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(steps) {
		var cyclic []string
		for id, deg := range inDegree {
			if deg > 0 {
				cyclic = append(cyclic, id)
			}
		}
		edges := make([]string, 0, len(cyclic))
		for _, id := range cyclic {
			for _, dep := range steps[id].DependsOn {
				if inDegree[dep] > 0 {
					edges = append(edges, fmt.Sprintf("%s->%s", dep, id))
				}
			}
		}
		return nil, errs.Validation("workflow", fmt.Sprintf("cycle detected among steps %v (edges: %v)", cyclic, edges), nil)
	}

	return order, nil
}
