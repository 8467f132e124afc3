package discovery

// confidence implements the calibration decision locked in the
// expanded spec: exact-identifier hits are floored at 0.8 regardless
// of classifier confidence (so content-confirmed Infrastructure YAML,
// classifier confidence 0.8, still clears the S1-S3 "assume >=0.8 on
// exact identifier hits" requirement); connection-string fragments and
// comment-only occurrences scale down from classifier confidence
// without a floor.
func confidence(kind MatchKind, classifierConfidence float64) float64 {
	switch kind {
	case KindExactIdentifier:
		c := 0.95 * classifierConfidence
		if c < 0.8 {
			c = 0.8
		}
		return c
	case KindConnectionString:
		return 0.75 * classifierConfidence
	case KindCommentOnly:
		return 0.4 * classifierConfidence
	default:
		return 0.0
	}
}
