// Package render produces the HTML card list shown for the current
// result snapshot. All interpolated fields pass through html/template,
// so card names and backend-supplied text can never inject markup.
package render

import (
	"html/template"
	"strings"

	"cardfetch/pkg/api"
)

// cardListTmpl renders the full result snapshot. Records still waiting
// on the lookup queue get a minimal placeholder; everything else gets a
// full card. Unknown status labels fall through to the full card path.
const cardListTmpl = `{{range .}}{{if .Pending}}<div class="card pending">
  <h3 class="card-name">{{.Name}}</h3>
  <p class="card-status">{{.Status}}</p>
</div>
{{else}}<div class="card">
  <h3 class="card-name">{{.Name}}</h3>
  <p class="card-cost">{{.ManaCost}}</p>
  <p class="card-type">{{.TypeLine}}</p>
  <p class="card-text">{{.OracleText}}</p>
  <p class="card-set">{{.SetName}}</p>
  <p class="card-status">{{.Status}}</p>
</div>
{{end}}{{end}}`

// pageTmpl wraps a rendered card list into a standalone page. Used by
// the server for GET / and by the CLI when writing a snapshot file.
const pageTmpl = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="card-list">
{{.List}}  </div>
</body>
</html>
`

type pageData struct {
	Title string
	List  template.HTML
}

// Renderer renders card records to HTML fragments and pages.
type Renderer struct {
	list *template.Template
	page *template.Template
}

// New creates a Renderer with the built-in templates.
func New() *Renderer {
	return &Renderer{
		list: template.Must(template.New("cards").Parse(cardListTmpl)),
		page: template.Must(template.New("page").Parse(pageTmpl)),
	}
}

// CardList renders the given records as an HTML fragment, one card per
// record, in input order.
func (r *Renderer) CardList(records []api.CardRecord) (string, error) {
	var buf strings.Builder
	if err := r.list.Execute(&buf, records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Page renders a full HTML page around an already-rendered card list
// fragment. The fragment is trusted; it must come from CardList.
func (r *Renderer) Page(title, listHTML string) (string, error) {
	var buf strings.Builder
	err := r.page.Execute(&buf, pageData{Title: title, List: template.HTML(listHTML)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
