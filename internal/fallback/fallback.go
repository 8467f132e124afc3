// Package fallback implements the FileDecommissionProcessor of spec
// §4.10: a deterministic, rule-less strategy used when the full
// ContextualRulesEngine is disabled or unavailable. New, simplified
// single-pass sibling of internal/rules, grounded on the same
// pkg/core/docker/templates.go template-driven idiom minus the
// rule-pack indirection.
package fallback

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Strategy is the closed set of fallback transformation strategies,
// assigned purely by file extension (spec §4.10).
type Strategy string

const (
	StrategyInfrastructure Strategy = "infrastructure"
	StrategyConfiguration  Strategy = "configuration"
	StrategyCode           Strategy = "code"
	StrategyDocumentation  Strategy = "documentation"
)

// AssignStrategy implements spec §4.10's extension table.
func AssignStrategy(path string) Strategy {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tf"), strings.Contains(lower, "helm/") && strings.HasSuffix(lower, ".yaml"):
		return StrategyInfrastructure
	case strings.HasSuffix(lower, ".yml"), strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".json"):
		return StrategyConfiguration
	case strings.HasSuffix(lower, ".py"), strings.HasSuffix(lower, ".sh"):
		return StrategyCode
	default:
		return StrategyDocumentation
	}
}

// Processor is the FileDecommissionProcessor itself.
type Processor struct {
	Database string
}

func New(database string) *Processor {
	return &Processor{Database: database}
}

// Result is one file's fallback-processed output and its destination
// under the parallel "<source_dir>_decommissioned/" tree (spec §4.10).
type Result struct {
	OriginalPath string
	OutputPath   string
	Content      string
	Strategy     Strategy
}

// Process applies the extension-keyed strategy to one file's content
// and computes its destination under sourceDir + "_decommissioned".
func (p *Processor) Process(sourceDir, relativePath, content string) Result {
	strategy := AssignStrategy(relativePath)

	var out string
	switch strategy {
	case StrategyInfrastructure, StrategyConfiguration:
		out = commentLinesContaining(content, p.Database)
	case StrategyCode:
		out = injectRaiseFunction(content, p.Database, relativePath)
	default:
		out = prependDeprecationBanner(content, p.Database)
	}

	decommissionedRoot := strings.TrimSuffix(sourceDir, "/") + "_decommissioned"
	return Result{
		OriginalPath: relativePath,
		OutputPath:   filepath.Join(decommissionedRoot, relativePath),
		Content:      out,
		Strategy:     strategy,
	}
}

func commentLinesContaining(content, database string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), strings.ToLower(database)) {
			lines[i] = "# " + line
		}
	}
	return strings.Join(lines, "\n")
}

// injectRaiseFunction keeps the original code as comments and prepends
// a fail-fast function, per spec §4.10 "inject raise-exception
// function; keep original code as comments".
func injectRaiseFunction(content, database, path string) string {
	commentTok := "#"
	commented := strings.Split(content, "\n")
	for i, line := range commented {
		commented[i] = commentTok + " " + line
	}

	header := fmt.Sprintf(
		"%s decommissioned reference to %s (fallback processor, %s)\ndef _decommissioned_%s_access():\n    raise RuntimeError(\"database %s was decommissioned; see %s for the original implementation\")\n\n",
		commentTok, database, time.Now().UTC().Format("2006-01-02"), sanitizeIdent(database), database, path,
	)
	return header + strings.Join(commented, "\n")
}

func prependDeprecationBanner(content, database string) string {
	banner := fmt.Sprintf(
		"<!-- DEPRECATED: this document references %s, decommissioned on %s. Original content follows. -->\n\n",
		database, time.Now().UTC().Format("2006-01-02"),
	)
	return banner + content
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
