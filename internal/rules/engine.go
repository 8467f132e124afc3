package rules

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"dbdecom/internal/classify"
	"dbdecom/internal/errs"
)

// Engine is the ContextualRulesEngine of spec §4.9.
type Engine struct {
	TicketID string
	Contact  string
}

func New(ticketID, contact string) *Engine {
	return &Engine{TicketID: ticketID, Contact: contact}
}

// Apply runs the rule pack for in.SourceType in priority order, then
// prepends the decommissioning header exactly once (spec §4.9 steps
// 1-3). Write-back to the host client on the decommission branch is
// the caller's responsibility (internal/decommission composes that).
func (e *Engine) Apply(in Input) (Output, error) {
	rs := pack(in.SourceType, in.Database)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Priority < rs[j].Priority })

	lines := strings.Split(in.Content, "\n")
	var edits []Edit

	for _, rule := range rs {
		re := regexp.MustCompile(rule.Pattern)

		if rule.BlockAware {
			switch rule.Action {
			case ActionCommentOut:
				lines, edits = applyBlockCommentOut(rule, re, in, lines, edits)
				continue
			case ActionReplaceWithException:
				lines, edits = applyFunctionBodyException(rule, re, in, lines, edits)
				continue
			}
		}

		var rewritten []string
		for i, line := range lines {
			if re.MatchString(line) && !(rule.Action == ActionCommentOut && isAlreadyCommented(in.SourceType, line)) {
				after, changed := applyLine(rule, in.SourceType, line, in.Database)
				if changed {
					edits = append(edits, Edit{RuleID: rule.ID, LineNumber: i + 1, Action: rule.Action, Before: line, After: after})
					if after == "" && rule.Action == ActionDeleteLine {
						continue // physically removed
					}
					rewritten = append(rewritten, after)
					continue
				}
			}
			rewritten = append(rewritten, line)
		}
		lines = rewritten
	}

	content := strings.Join(lines, "\n")

	if isHelmValuesFile(in) {
		if _, err := yaml.YAMLToJSON([]byte(content)); err != nil {
			return Output{}, errs.Rule("rules", "comment_out/delete_line edits broke Helm values.yaml structure for "+in.Path, err)
		}
	}

	if alreadyHasHeader(content) {
		return Output{Content: content, Edits: edits}, nil
	}

	header, err := RenderHeader(HeaderParams{
		Database: in.Database,
		Date:     time.Now().UTC(),
		Strategy: string(in.SourceType),
		TicketID: e.TicketID,
		Contact:  e.Contact,
	}, in.SourceType)
	if err != nil {
		return Output{}, err
	}

	return Output{Content: header + content, Edits: append(edits, Edit{Action: ActionPrependHeader})}, nil
}

// alreadyHasHeader makes header prepending idempotent across repeated
// runs over the same already-processed file.
func alreadyHasHeader(content string) bool {
	return strings.Contains(content, "decommission:")
}

// isHelmValuesFile reports whether in is a Helm values.yaml, the one
// case where line-level comment_out/delete_line edits risk producing
// structurally invalid YAML (e.g. a commented-out list item leaving an
// empty sequence). Other Infrastructure types (Terraform, raw k8s
// manifests) tolerate "#" comments anywhere without this check.
func isHelmValuesFile(in Input) bool {
	if in.SourceType != classify.Infrastructure {
		return false
	}
	if !strings.HasPrefix(filepath.Base(in.Path), "values") {
		return false
	}
	for _, hint := range in.FrameworkHints {
		if hint == "helm" {
			return true
		}
	}
	return false
}
