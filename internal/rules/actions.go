package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dbdecom/internal/classify"
)

// applyLine applies one rule's action to a single matched line, per
// spec §4.9's action semantics. Returns the replacement content for
// that line (may be multiple lines, newline-joined, for
// replace_with_exception) and whether the line was changed.
func applyLine(rule Rule, st classify.SourceType, line string, database string) (string, bool) {
	switch rule.Action {
	case ActionCommentOut:
		return commentOutLine(st, line), true

	case ActionDeleteLine:
		return "", true

	case ActionInsertDeprecationNotice:
		tok := commentToken(st)
		notice := fmt.Sprintf("%s DEPRECATED: references %s, scheduled for decommission", tok, database)
		return notice + "\n" + line, true

	case ActionReplaceWithException:
		indent := leadingWhitespace(line)
		date := time.Now().UTC().Format("2006-01-02")
		raise := fmt.Sprintf(
			`%sraise RuntimeError("database %s was decommissioned on %s; contact data-platform@example.com for migration guidance")`,
			indent, database, date,
		)
		return raise, true

	case ActionPrependHeader:
		// handled at the file level by RenderHeader, not per-line.
		return line, false

	default:
		return line, false
	}
}

// commentOutLine prefixes a line with the source type's comment token,
// preserving original indentation (spec §4.9).
func commentOutLine(st classify.SourceType, line string) string {
	indent := leadingWhitespace(line)
	rest := line[len(indent):]
	tok := commentToken(st)
	if tok == "<!--" {
		return fmt.Sprintf("%s<!-- %s -->", indent, rest)
	}
	return fmt.Sprintf("%s%s %s", indent, tok, rest)
}

var leadingWhitespaceRe = regexp.MustCompile(`^[ \t]*`)

func leadingWhitespace(line string) string {
	return leadingWhitespaceRe.FindString(line)
}

// isAlreadyCommented reports whether line already starts (after
// indentation) with the given comment token, so re-running the engine
// over an already-processed file is idempotent.
func isAlreadyCommented(st classify.SourceType, line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(trimmed, commentToken(st))
}
