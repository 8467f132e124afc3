package discovery

import (
	"strings"

	"dbdecom/internal/archive"
	"dbdecom/internal/classify"
)

const contextRadius = 2

// Engine is the PatternDiscoveryEngine of spec §4.8.
type Engine struct {
	classifier *classify.Classifier
}

func New(classifier *classify.Classifier) *Engine {
	return &Engine{classifier: classifier}
}

// Discover runs the classifier and the §4.8 pattern table over every
// extracted file, producing one MatchedFile per input with its
// SourceType/confidence/framework hints plus per-line matches.
// Binary files (content not valid UTF-8) are already filtered out by
// the archive extractor, so every file reaching here is safe to scan
// as text.
func (e *Engine) Discover(files []archive.ExtractedFile, database string) []MatchedFile {
	patterns := buildPatterns(database)

	out := make([]MatchedFile, 0, len(files))
	for _, f := range files {
		cls := e.classifier.Classify(f.OriginalPath, f.Content)

		matches := e.matchFile(string(f.Content), patterns, cls.Confidence)

		out = append(out, MatchedFile{
			OriginalPath:      f.OriginalPath,
			ExtractedCopyPath: f.ExtractedCopyPath,
			Matches:           matches,
			SourceType:        cls.SourceType,
			Confidence:        cls.Confidence,
			FrameworkHints:    cls.FrameworkHints,
		})
	}
	return out
}

func (e *Engine) matchFile(content string, patterns []patternSet, classifierConfidence float64) []Match {
	lines := strings.Split(content, "\n")

	var matches []Match
	seen := make(map[int]bool) // at most one reported match kind per line, from the first pattern in table order that matches
	for _, ps := range patterns {
		for i, line := range lines {
			if seen[i] {
				continue
			}
			matched := ps.pattern.FindString(line)
			if matched == "" {
				continue
			}

			kind := ps.kind
			if isCommentLine(strings.TrimSpace(line)) {
				kind = KindCommentOnly
			}

			matches = append(matches, Match{
				LineNumber:   i + 1,
				MatchedText:  matched,
				ContextLines: contextAround(lines, i, contextRadius),
				Kind:         kind,
				Confidence:   confidence(kind, classifierConfidence),
			})
			seen[i] = true
		}
	}
	return matches
}

func contextAround(lines []string, idx, radius int) []string {
	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + radius + 1
	if end > len(lines) {
		end = len(lines)
	}
	var ctx []string
	for i := start; i < end; i++ {
		if i == idx {
			continue
		}
		ctx = append(ctx, lines[i])
	}
	return ctx
}
