package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// applyBlockCommentOut comments out, as whole units, every Infrastructure
// block a match falls inside, per spec §4.9's multi-line block handling.
func applyBlockCommentOut(rule Rule, re *regexp.Regexp, in Input, lines []string, edits []Edit) ([]string, []Edit) {
	consumed := make([]bool, len(lines))
	type span struct{ start, end int }
	var blocks []span
	for i, line := range lines {
		if consumed[i] || !re.MatchString(line) || isAlreadyCommented(in.SourceType, line) {
			continue
		}
		start, end := blockBounds(lines, i, in.FrameworkHints)
		blocks = append(blocks, span{start, end})
		for j := start; j <= end; j++ {
			consumed[j] = true
		}
	}
	if len(blocks) == 0 {
		return lines, edits
	}

	var rewritten []string
	bi := 0
	for i := 0; i < len(lines); i++ {
		if bi < len(blocks) && i == blocks[bi].start {
			start, end := blocks[bi].start, blocks[bi].end
			for j := start; j <= end; j++ {
				if isAlreadyCommented(in.SourceType, lines[j]) {
					rewritten = append(rewritten, lines[j])
					continue
				}
				after := commentOutLine(in.SourceType, lines[j])
				edits = append(edits, Edit{RuleID: rule.ID, LineNumber: j + 1, Action: rule.Action, Before: lines[j], After: after})
				rewritten = append(rewritten, after)
			}
			i = end
			bi++
			continue
		}
		rewritten = append(rewritten, lines[i])
	}
	return rewritten, edits
}

// applyFunctionBodyException injects a raise expression right after a
// matched Python function's signature and comments out the original
// body as a unit, per spec §4.9/S1 ("inject a raise ... and comment the
// original body"). A match outside every function gets applyLine's
// single-line replace_with_exception behavior only when no match in the
// file resolves to a function; in a file where at least one match does,
// matches outside every function are left unchanged.
func applyFunctionBodyException(rule Rule, re *regexp.Regexp, in Input, lines []string, edits []Edit) ([]string, []Edit) {
	consumed := make([]bool, len(lines))
	type fn struct{ defIdx, bodyEnd int }
	var fns []fn
	for i, line := range lines {
		if consumed[i] || !re.MatchString(line) {
			continue
		}
		defIdx, bodyEnd, ok := pythonFunctionBounds(lines, i)
		if !ok {
			continue
		}
		fns = append(fns, fn{defIdx, bodyEnd})
		for j := defIdx; j <= bodyEnd; j++ {
			consumed[j] = true
		}
	}

	date := time.Now().UTC().Format("2006-01-02")
	var rewritten []string
	fi := 0
	for i := 0; i < len(lines); i++ {
		if fi < len(fns) && i == fns[fi].defIdx {
			defIdx, bodyEnd := fns[fi].defIdx, fns[fi].bodyEnd
			rewritten = append(rewritten, lines[defIdx])

			indent := functionBodyIndent(lines, defIdx, bodyEnd)
			raiseLine := fmt.Sprintf(
				`%sraise RuntimeError("database %s was decommissioned on %s; contact data-platform@example.com for migration guidance")`,
				indent, in.Database, date,
			)
			rewritten = append(rewritten, raiseLine)
			edits = append(edits, Edit{RuleID: rule.ID, LineNumber: defIdx + 2, Action: rule.Action, After: raiseLine})

			for j := defIdx + 1; j <= bodyEnd; j++ {
				if strings.TrimSpace(lines[j]) == "" {
					rewritten = append(rewritten, lines[j])
					continue
				}
				after := commentOutLine(in.SourceType, lines[j])
				edits = append(edits, Edit{RuleID: rule.ID, LineNumber: j + 1, Action: ActionCommentOut, Before: lines[j], After: after})
				rewritten = append(rewritten, after)
			}
			i = bodyEnd
			fi++
			continue
		}
		rewritten = append(rewritten, lines[i])
	}

	if len(fns) == 0 {
		// Nothing resolved to an enclosing function; leave matched lines
		// to the single-line fallback the caller applies for non-block
		// matches of this same rule id/pattern.
		var out []string
		for _, line := range lines {
			if re.MatchString(line) {
				after, changed := applyLine(rule, in.SourceType, line, in.Database)
				if changed {
					edits = append(edits, Edit{RuleID: rule.ID, LineNumber: 0, Action: rule.Action, Before: line, After: after})
					out = append(out, after)
					continue
				}
			}
			out = append(out, line)
		}
		return out, edits
	}

	return rewritten, edits
}

// blockBounds returns the inclusive [start, end] line range that
// comment_out must treat as a single unit when a match lands inside
// line idx, per spec §4.9's "Multi-line blocks (YAML resource blocks,
// Terraform resource blocks) are detected by indentation/brace
// structure and commented as a unit". Terraform files are brace
// delimited; YAML resource blocks are indentation delimited, so the
// framework hint the classifier already attaches picks between them.
func blockBounds(lines []string, idx int, frameworkHints []string) (int, int) {
	if hasHint(frameworkHints, "terraform") {
		return braceBlockBounds(lines, idx)
	}
	return indentBlockBounds(lines, idx)
}

func hasHint(hints []string, want string) bool {
	for _, h := range hints {
		if h == want {
			return true
		}
	}
	return false
}

// braceBlockBounds walks outward from idx to the innermost `{ ... }`
// block enclosing it: backward to the line whose brace count nets
// positive (the block's opening line), then forward to the line where
// the running brace balance returns to zero (the closing line).
func braceBlockBounds(lines []string, idx int) (int, int) {
	depth := 0
	start := idx
	for i := idx; i >= 0; i-- {
		depth += strings.Count(lines[i], "}") - strings.Count(lines[i], "{")
		start = i
		if depth < 0 {
			break
		}
	}

	depth = 0
	end := start
	for i := start; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		end = i
		if i > start && depth <= 0 {
			break
		}
	}
	return start, end
}

// indentBlockBounds walks outward from idx to the enclosing YAML
// element. If idx's own line already opens a block (a "key:" with no
// inline scalar), idx is the block's header. Otherwise idx is a leaf
// line nested inside some mapping entry, so the header is the nearest
// preceding line with strictly less indentation. From that header, the
// block runs forward through every subsequent line more indented than
// it, i.e. the header's full subtree.
func indentBlockBounds(lines []string, idx int) (int, int) {
	start := idx
	base := indentOf(lines[idx])

	if !opensYAMLBlock(lines[idx]) {
		for i := idx - 1; i >= 0; i-- {
			if strings.TrimSpace(lines[i]) == "" {
				continue
			}
			if indentOf(lines[i]) < base {
				start = i
				base = indentOf(lines[i])
				break
			}
		}
	}

	end := start
	for end+1 < len(lines) {
		next := lines[end+1]
		if strings.TrimSpace(next) == "" || indentOf(next) <= base {
			break
		}
		end++
	}
	return start, end
}

// opensYAMLBlock reports whether line is a mapping/list key with no
// inline scalar value, i.e. its content lives in the more-indented
// lines that follow rather than on the line itself.
func opensYAMLBlock(line string) bool {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "- ")
	return strings.HasSuffix(trimmed, ":")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// pythonFunctionBounds finds the def/async def line enclosing idx and
// the last line of its body (blank lines inside the body included,
// terminated by the first non-blank line at or below the def's own
// indentation). ok is false if idx isn't inside any function.
func pythonFunctionBounds(lines []string, idx int) (defIdx, bodyEnd int, ok bool) {
	defIdx = -1
	for i := idx; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async def ") {
			defIdx = i
			break
		}
	}
	if defIdx == -1 {
		return 0, 0, false
	}

	defIndent := indentOf(lines[defIdx])
	bodyEnd = defIdx
	for i := defIdx + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			bodyEnd = i
			continue
		}
		if indentOf(lines[i]) <= defIndent {
			break
		}
		bodyEnd = i
	}
	for bodyEnd > defIdx && strings.TrimSpace(lines[bodyEnd]) == "" {
		bodyEnd--
	}
	if bodyEnd == defIdx || idx > bodyEnd {
		return defIdx, defIdx, false
	}
	return defIdx, bodyEnd, true
}

// functionBodyIndent returns the indentation of a function's body,
// falling back to one level deeper than the def line if the body is
// entirely blank.
func functionBodyIndent(lines []string, defIdx, bodyEnd int) string {
	for j := defIdx + 1; j <= bodyEnd; j++ {
		if strings.TrimSpace(lines[j]) != "" {
			return leadingWhitespace(lines[j])
		}
	}
	return leadingWhitespace(lines[defIdx]) + "    "
}
