package rules

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"dbdecom/internal/classify"
	"dbdecom/internal/errs"
)

// HeaderParams are the five tokens spec §6 "Decommissioning header"
// requires: decommission date, strategy name, ticket id, contact
// address, and the legend line.
type HeaderParams struct {
	Database    string
	Date        time.Time
	Strategy    string
	TicketID    string
	Contact     string
}

const headerTemplateSource = `{{ commentLine .Comment (printf "decommission: %s" .Database) }}
{{ commentLine .Comment (printf "date: %s" (.Date.Format "2006-01-02")) }}
{{ commentLine .Comment (printf "strategy: %s" .Strategy) }}
{{ commentLine .Comment (printf "ticket: %s" .TicketID) }}
{{ commentLine .Comment (printf "contact: %s | original content follows as comments" (trim .Contact)) }}
`

var headerFuncs = template.FuncMap{
	"commentLine": func(tok, body string) string {
		if tok == "<!--" {
			return fmt.Sprintf("<!-- %s -->", body)
		}
		return fmt.Sprintf("%s %s", tok, body)
	},
}

var headerTemplate = template.Must(
	template.New("decommission-header").Funcs(sprig.TxtFuncMap()).Funcs(headerFuncs).Parse(headerTemplateSource))

// RenderHeader renders the five-line banner of spec §6, using the
// comment token appropriate to sourceType.
func RenderHeader(p HeaderParams, sourceType classify.SourceType) (string, error) {
	data := struct {
		HeaderParams
		Comment string
	}{HeaderParams: p, Comment: commentToken(sourceType)}

	var buf bytes.Buffer
	if err := headerTemplate.Execute(&buf, data); err != nil {
		return "", errs.Rule("rules", "rendering decommission header", err)
	}
	return buf.String(), nil
}

// CommitMessage renders spec §4.9's commit message template:
// "decommission(<source-type>): remove <D> references from <path>".
func CommitMessage(sourceType classify.SourceType, database, path string) string {
	return fmt.Sprintf("decommission(%s): remove %s references from %s", sourceType, database, path)
}

// BranchName renders spec §4.9's branch name template:
// "decommission-<D>-<short-sha>".
func BranchName(database, shortSHA string) string {
	return fmt.Sprintf("decommission-%s-%s", database, shortSHA)
}
