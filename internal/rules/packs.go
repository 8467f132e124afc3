package rules

import (
	"fmt"
	"regexp"

	"dbdecom/internal/classify"
)

// commentTokens maps a SourceType to the comment token used by
// comment_out/insert_deprecation_notice (spec §4.9 action semantics).
var commentTokens = map[classify.SourceType]string{
	classify.Infrastructure: "#",
	classify.Configuration:  "#",
	classify.SQL:            "--",
	classify.Python:         "#",
	classify.Shell:          "#",
	classify.Documentation:  "<!--",
}

func commentToken(st classify.SourceType) string {
	if tok, ok := commentTokens[st]; ok {
		return tok
	}
	return "#"
}

// pack returns the totally-ordered rule set for one SourceType,
// parameterized by the database identifier. Infrastructure rules
// remove whole resource blocks; Configuration/SQL/Documentation rules
// comment the matching line; Python additionally offers the
// replace_with_exception action wired up by the engine for function
// bodies (spec §4.9).
func pack(st classify.SourceType, database string) []Rule {
	quoted := regexp.QuoteMeta(database)

	switch st {
	case classify.Infrastructure:
		return []Rule{
			{
				ID:         "infra-identifier-block",
				AppliesTo:  []classify.SourceType{classify.Infrastructure},
				Pattern:    fmt.Sprintf(`(?i)\b%s\b`, quoted),
				Action:     ActionCommentOut,
				Priority:   10,
				BlockAware: true,
			},
		}

	case classify.Configuration:
		return []Rule{
			{
				ID:        "config-key-line",
				AppliesTo: []classify.SourceType{classify.Configuration},
				Pattern:   fmt.Sprintf(`(?i)\b%s\b`, quoted),
				Action:    ActionCommentOut,
				Priority:  10,
			},
		}

	case classify.SQL:
		return []Rule{
			{
				ID:        "sql-statement-line",
				AppliesTo: []classify.SourceType{classify.SQL},
				Pattern:   fmt.Sprintf(`(?i)\b%s\b`, quoted),
				Action:    ActionCommentOut,
				Priority:  10,
			},
		}

	case classify.Python:
		return []Rule{
			{
				ID:                  "python-function-body",
				AppliesTo:           []classify.SourceType{classify.Python},
				Pattern:             fmt.Sprintf(`(?i)\b%s\b`, quoted),
				Action:              ActionReplaceWithException,
				ReplacementTemplate: "raise RuntimeError({{.Message}})",
				Priority:            10,
				BlockAware:          true,
			},
		}

	case classify.Documentation:
		return []Rule{
			{
				ID:        "doc-reference-notice",
				AppliesTo: []classify.SourceType{classify.Documentation},
				Pattern:   fmt.Sprintf(`(?i)\b%s\b`, quoted),
				Action:    ActionInsertDeprecationNotice,
				Priority:  10,
			},
		}

	default:
		return nil
	}
}
