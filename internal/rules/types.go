// Package rules implements the ContextualRulesEngine of spec §4.9: a
// rule pack per SourceType, applied in priority order to rewrite a
// matched file's content, followed by a prepended decommissioning
// header. Grounded on the teacher's pkg/core/docker/templates.go
// template-driven rewrite idiom, generalized from "render a Dockerfile"
// to "render a header/commit message from a fixed template set".
package rules

import (
	"dbdecom/internal/classify"
)

// Action is the closed enum of spec §3/§4.9.
type Action string

const (
	ActionCommentOut              Action = "comment_out"
	ActionDeleteLine              Action = "delete_line"
	ActionInsertDeprecationNotice Action = "insert_deprecation_notice"
	ActionReplaceWithException    Action = "replace_with_exception"
	ActionPrependHeader           Action = "prepend_header"
)

// Rule is spec §3's Rule type.
type Rule struct {
	ID                  string
	AppliesTo           []classify.SourceType
	FrameworkTag        string // optional; "" matches any framework
	Pattern             string // regex matched against each line
	Action              Action
	ReplacementTemplate string // used by replace_with_exception
	Priority            int    // lower runs first

	// BlockAware marks a rule whose action must be applied to the
	// enclosing multi-line block (an Infrastructure resource block for
	// comment_out, a function body for replace_with_exception) rather
	// than the single matched line, per spec §4.9.
	BlockAware bool
}

// Edit records one line-level change made by a rule, for the audit log.
type Edit struct {
	RuleID     string
	LineNumber int
	Action     Action
	Before     string
	After      string
}

// Input is what the rules engine needs about one matched file to
// rewrite it.
type Input struct {
	Path           string
	Content        string
	SourceType     classify.SourceType
	FrameworkHints []string
	Database       string
}

// Output is the rewritten content plus its edit log.
type Output struct {
	Content string
	Edits   []Edit
}
