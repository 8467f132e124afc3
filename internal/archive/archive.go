// Package archive implements the DatabaseReferenceExtractor of spec
// §4.11: it parses the packed-repository archive format (XML-ish,
// CDATA-framed, §6) and emits per-file matches for a database
// identifier D, writing quarantined copies under a quarantine root.
// Grounded on the teacher's pkg/filetree/filetree.go tree-walk idiom,
// here walking a parsed archive's <file> elements instead of a live
// filesystem.
package archive

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"dbdecom/internal/errs"
)

// File is one (path, content) pair extracted from the archive.
type File struct {
	Path    string
	Content []byte
}

// xmlRepository/xmlFile mirror the wire shape of §6 exactly; they are
// decode targets only, never exposed outside this package.
type xmlRepository struct {
	XMLName  xml.Name  `xml:"repository"`
	URL      string    `xml:"url,attr"`
	PackedAt string    `xml:"packed_at,attr"`
	Files    []xmlFile `xml:"file"`
}

type xmlFile struct {
	Path     string `xml:"path,attr"`
	Encoding string `xml:"encoding,attr"`
	// CDATA sections decode as ordinary character data; encoding/xml's
	// ",cdata" tag only affects Marshal, so ",chardata" is the correct
	// (and only) way to capture this on the decode path.
	Body string `xml:",chardata"`
}

// Parse decodes a packed-repository archive into an ordered list of
// (path, content) pairs. Binary bodies with encoding="base64" are
// decoded; bodies that fail to decode or are not valid UTF-8 are
// skipped rather than aborting the whole parse (spec §6 "parsers must
// skip unreadable bodies without aborting").
func Parse(raw []byte) ([]File, error) {
	var repo xmlRepository
	if err := xml.Unmarshal(raw, &repo); err != nil {
		return nil, errs.Validation("archive", "malformed packed-repository archive", err)
	}

	files := make([]File, 0, len(repo.Files))
	for _, f := range repo.Files {
		body := []byte(f.Body)
		if f.Encoding == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(f.Body))
			if err != nil {
				continue
			}
			body = decoded
		}
		if !utf8.Valid(body) {
			continue
		}
		files = append(files, File{Path: f.Path, Content: body})
	}
	return files, nil
}

// MatchSpan is a single occurrence of D within a file's content, with
// enough context to drive downstream classification/discovery.
type MatchSpan struct {
	LineNumber int
	Line       string
	Matched    string
}

// Extractor runs the plain `\b<D>\b` regex over parsed archive files
// and writes matched files into a quarantine root.
type Extractor struct {
	QuarantineRoot string
}

func New(quarantineRoot string) *Extractor {
	return &Extractor{QuarantineRoot: quarantineRoot}
}

// ExtractedFile is one file with at least one reference to D.
type ExtractedFile struct {
	OriginalPath      string
	ExtractedCopyPath string
	Content           []byte
	Matches           []MatchSpan
}

// Extract parses raw and returns every file referencing database D
// (case-insensitive whole-word match), writing a copy of each under
// <QuarantineRoot>/<D>/<original path> (spec §6 persisted-state layout:
// tests/tmp/pattern_match/<D>/<original/path>).
func (e *Extractor) Extract(raw []byte, database string) ([]ExtractedFile, error) {
	files, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(database) + `\b`)
	if err != nil {
		return nil, errs.Validation("archive", "database identifier is not a valid regex token", err)
	}

	var out []ExtractedFile
	for _, f := range files {
		matches := matchLines(string(f.Content), pattern)
		if len(matches) == 0 {
			continue
		}

		destPath := filepath.Join(e.QuarantineRoot, database, filepath.FromSlash(f.Path))
		if err := writeQuarantineCopy(destPath, f.Content); err != nil {
			return nil, err
		}

		out = append(out, ExtractedFile{
			OriginalPath:      f.Path,
			ExtractedCopyPath: destPath,
			Content:           f.Content,
			Matches:           matches,
		})
	}
	return out, nil
}

func matchLines(content string, pattern *regexp.Regexp) []MatchSpan {
	lines := strings.Split(content, "\n")
	var spans []MatchSpan
	for i, line := range lines {
		loc := pattern.FindString(line)
		if loc == "" {
			continue
		}
		spans = append(spans, MatchSpan{
			LineNumber: i + 1,
			Line:       line,
			Matched:    loc,
		})
	}
	return spans
}

func writeQuarantineCopy(destPath string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return errs.Validation("archive", fmt.Sprintf("creating quarantine directory for %s", destPath), err)
	}
	if err := os.WriteFile(destPath, content, 0o644); err != nil {
		return errs.Validation("archive", fmt.Sprintf("writing quarantine copy %s", destPath), err)
	}
	return nil
}
