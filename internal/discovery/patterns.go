package discovery

import (
	"regexp"
)

// patternSet is the static table of spec §4.8: patterns parameterized
// by the database identifier D, tagged with the MatchKind that drives
// confidence weighting.
type patternSet struct {
	pattern *regexp.Regexp
	kind    MatchKind
}

// buildPatterns compiles the pattern table for one database identifier.
// Order matters: more specific (connection-string, config-key) patterns
// are checked before the bare identifier so a line matching both is
// reported at its most specific kind, even where that kind scores lower
// on the confidence ladder.
func buildPatterns(d string) []patternSet {
	quoted := regexp.QuoteMeta(d)
	return []patternSet{
		{
			pattern: regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|redis)://[^\s"']*` + quoted + `[^\s"']*`),
			kind:    KindConnectionString,
		},
		{
			pattern: regexp.MustCompile(`(?i)` + quoted + `_(HOST|PORT|URL|USER|PASSWORD|NAME|DSN)\b`),
			kind:    KindConnectionString,
		},
		{
			pattern: regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|GRANT)\b[^\n]*\b` + quoted + `\b`),
			kind:    KindExactIdentifier,
		},
		{
			pattern: regexp.MustCompile(`(?i)\b` + quoted + `\b`),
			kind:    KindExactIdentifier,
		},
	}
}

// commentPrefixes are used to recognize a comment-only occurrence for
// the confidence ladder's lowest tier.
var commentPrefixes = []string{"#", "//", "--", "<!--", "*"}

func isCommentLine(trimmed string) bool {
	for _, p := range commentPrefixes {
		if len(trimmed) >= len(p) && trimmed[:len(p)] == p {
			return true
		}
	}
	return false
}

