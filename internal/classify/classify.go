// Package classify implements the SourceTypeClassifier of spec §4.7: a
// deterministic (path, content) -> (SourceType, framework hints,
// confidence) mapping. Grounded on the teacher's
// pkg/mcp/infrastructure/core/version/detector.go switch-table style of
// language/framework detection, generalized from "detect a version"
// to "classify a source file".
package classify

import (
	"bytes"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceType is the closed enum of spec §3.
type SourceType string

const (
	Infrastructure SourceType = "Infrastructure"
	Configuration  SourceType = "Configuration"
	SQL            SourceType = "SQL"
	Python         SourceType = "Python"
	Shell          SourceType = "Shell"
	Documentation  SourceType = "Documentation"
	Mixed          SourceType = "Mixed"
	Unknown        SourceType = "Unknown"
)

// Result is what the classifier produces for one file.
type Result struct {
	SourceType     SourceType
	FrameworkHints []string
	Confidence     float64
}

// Classifier is stateless; New exists only for symmetry with the rest
// of the pipeline's constructor convention.
type Classifier struct{}

func New() *Classifier { return &Classifier{} }

// Classify implements the decision order of spec §4.7: path suffix
// rules first, then content sniffs that can override the path-based
// SourceType, then a fixed confidence ladder.
func (c *Classifier) Classify(path string, content []byte) Result {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	text := string(content)

	switch {
	case strings.HasSuffix(lower, ".tf") || strings.HasSuffix(lower, ".tfvars"):
		return Result{SourceType: Infrastructure, Confidence: 1.0, FrameworkHints: []string{"terraform"}}

	case lower == "chart.yaml" || strings.HasPrefix(lower, "values") && isYAML(lower) || strings.Contains(filepath.ToSlash(path), "templates/"):
		return Result{SourceType: Infrastructure, Confidence: 1.0, FrameworkHints: []string{"helm"}}

	case strings.HasSuffix(lower, ".sql") || strings.HasSuffix(lower, ".dump") || strings.HasSuffix(lower, ".bak"):
		return Result{SourceType: SQL, Confidence: 1.0}

	case strings.HasSuffix(lower, ".py"):
		return Result{SourceType: Python, Confidence: 1.0, FrameworkHints: pythonFrameworkHints(text)}

	case strings.HasSuffix(lower, ".sh"):
		return Result{SourceType: Shell, Confidence: 1.0}

	case isYAML(lower):
		if looksLikeKubernetesManifest(text) {
			return Result{SourceType: Infrastructure, Confidence: 0.8, FrameworkHints: []string{"kubernetes"}}
		}
		return Result{SourceType: Configuration, Confidence: 1.0}

	case strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".ini") ||
		strings.HasSuffix(lower, ".toml") || strings.HasPrefix(lower, ".env"):
		return Result{SourceType: Configuration, Confidence: 1.0}

	case strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".rst") || strings.HasSuffix(lower, ".txt"):
		return Result{SourceType: Documentation, Confidence: 1.0}
	}

	return Result{SourceType: Unknown, Confidence: 0.0}
}

func isYAML(lower string) bool {
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

// looksLikeKubernetesManifest sniffs for the apiVersion+kind pair spec
// §4.7 names as the Infrastructure override for otherwise-Configuration
// YAML. A multi-document decode is required here: Helm/k8s manifests
// routinely pack several "---"-separated documents in one file, and a
// single Decode call would only ever see the first.
func looksLikeKubernetesManifest(text string) bool {
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(text)))
	for {
		var doc map[string]any
		if err := decoder.Decode(&doc); err != nil {
			return false
		}
		if _, hasAPIVersion := doc["apiVersion"]; hasAPIVersion {
			if _, hasKind := doc["kind"]; hasKind {
				return true
			}
		}
	}
}

func pythonFrameworkHints(text string) []string {
	var hints []string
	if strings.Contains(text, "from django") || strings.Contains(text, "import django") {
		hints = append(hints, "django")
	}
	if strings.Contains(text, "from flask") || strings.Contains(text, "import flask") {
		hints = append(hints, "flask")
	}
	return hints
}
