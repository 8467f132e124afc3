// Package discovery implements the PatternDiscoveryEngine of spec §4.8:
// given an ordered (path, content) archive and a database identifier D,
// it produces MatchedFile entries with per-line matches and a
// confidence score. Grounded on the teacher's
// pkg/core/security/secret_discovery.go regex-table-per-category idiom,
// repointed from "find secrets" to "find references to D".
package discovery

import "dbdecom/internal/classify"

// MatchKind distinguishes the pattern strength used by the confidence
// ladder (spec §4.8 "Confidence per match combines pattern strength...").
type MatchKind string

const (
	KindExactIdentifier  MatchKind = "exact_identifier"
	KindConnectionString MatchKind = "connection_string"
	KindCommentOnly      MatchKind = "comment_only"
)

// Match is one matched occurrence of D within a file.
type Match struct {
	LineNumber   int
	MatchedText  string
	ContextLines []string
	Kind         MatchKind
	Confidence   float64
}

// MatchedFile is built by Discover from one of the extractor's files,
// carrying the classifier's verdict and this engine's matches (spec §3
// MatchedFile lifecycle).
type MatchedFile struct {
	OriginalPath      string
	ExtractedCopyPath string
	Matches           []Match

	SourceType     classify.SourceType
	Confidence     float64
	FrameworkHints []string
}
