package dashboard

import (
	"html/template"
	"io"

	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// Renderer handles rendering responses to HTTP clients.
// This interface follows Interface Segregation Principle (SOLID-I).
type Renderer interface {
	RenderIndex(w io.Writer, view IndexView) error
	RenderHealth(w io.Writer) error
}

// IssueView is an issue with its body rendered to sanitized HTML.
type IssueView struct {
	domain.Issue
	BodyHTML template.HTML
}

// IndexView groups persisted issues by status.
type IndexView struct {
	Org       string
	Unmarked  []IssueView
	Valid     []IssueView
	Invalid   []IssueView
	Issueless []domain.IssuelessRepo
}

// Total is the number of issues on the page.
func (v IndexView) Total() int {
	return len(v.Unmarked) + len(v.Valid) + len(v.Invalid)
}

// NewIndexView buckets issues by status; anything not VALID or INVALID is unmarked.
func NewIndexView(org string, issues []domain.Issue, issueless []domain.IssuelessRepo) IndexView {
	view := IndexView{Org: org, Issueless: issueless}
	for _, issue := range issues {
		iv := IssueView{Issue: issue, BodyHTML: RenderMarkdown(issue.Body)}
		switch issue.Status {
		case domain.StatusValid:
			view.Valid = append(view.Valid, iv)
		case domain.StatusInvalid:
			view.Invalid = append(view.Invalid, iv)
		default:
			view.Unmarked = append(view.Unmarked, iv)
		}
	}
	return view
}

var sanitizer = bluemonday.UGCPolicy()

// RenderMarkdown converts an issue body to HTML and strips anything unsafe.
// Image links in the body are kept.
func RenderMarkdown(body string) template.HTML {
	if body == "" {
		return ""
	}
	html := markdown.ToHTML([]byte(body), nil, nil)
	return template.HTML(sanitizer.SanitizeBytes(html))
}

// HTMLRenderer implements Renderer for HTML responses.
type HTMLRenderer struct {
	index *template.Template
}

// NewHTMLRenderer creates a new HTML renderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		index: template.Must(template.New("index").Funcs(template.FuncMap{
			"section": func(title string, issues []IssueView) map[string]any {
				return map[string]any{"Title": title, "Issues": issues}
			},
		}).Parse(indexTemplate)),
	}
}

func (r *HTMLRenderer) RenderIndex(w io.Writer, view IndexView) error {
	return r.index.Execute(w, view)
}

func (r *HTMLRenderer) RenderHealth(w io.Writer) error {
	_, err := w.Write([]byte(`{"status":"ok"}`))
	return err
}

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
	<title>Issue Triage{{if .Org}} - {{.Org}}{{end}}</title>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<style>
		:root {
			--bg-primary: #f5f5f5;
			--bg-secondary: white;
			--text-primary: #333;
			--text-secondary: #666;
			--link-color: #0066cc;
			--border-color: #e0e0e0;
			--shadow: rgba(0,0,0,0.1);
		}
		body { font-family: system-ui, -apple-system, sans-serif; margin: 0; padding: 20px; background: var(--bg-primary); color: var(--text-primary); }
		.container { max-width: 1200px; margin: 0 auto; }
		.card { background: var(--bg-secondary); padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px var(--shadow); margin-bottom: 20px; }
		.nav { margin-bottom: 30px; display: flex; align-items: center; gap: 20px; }
		.nav a { color: var(--link-color); text-decoration: none; }
		table { width: 100%; border-collapse: collapse; }
		th, td { text-align: left; padding: 8px; border-bottom: 1px solid var(--border-color); vertical-align: top; }
		td.body img { max-width: 320px; }
		.muted { color: var(--text-secondary); }
	</style>
</head>
<body>
	<div class="container">
		<h1>Issue Triage{{if .Org}} <span class="muted">{{.Org}}</span>{{end}}</h1>
		<div class="nav">
			<a href="/api/issues">API (JSON)</a>
			<a href="/api/issues/export.csv">Export CSV</a>
		</div>
		{{template "issues" section "Unmarked" .Unmarked}}
		{{template "issues" section "Valid" .Valid}}
		{{template "issues" section "Invalid" .Invalid}}
		<div class="card">
			<h2>Repos with No Open Issues ({{len .Issueless}})</h2>
			{{if .Issueless}}<ul>{{range .Issueless}}<li>{{.Name}}</li>{{end}}</ul>{{else}}<p class="muted">None</p>{{end}}
		</div>
	</div>
</body>
</html>
{{define "issues"}}
		<div class="card">
			<h2>{{.Title}} ({{len .Issues}})</h2>
			{{if .Issues}}
			<table>
				<tr><th>Title</th><th>Repo</th><th>Reporter</th><th>Team</th><th>Created</th><th>Body</th></tr>
				{{range .Issues}}
				<tr>
					<td><a href="{{.URL}}">{{.Title}}</a></td>
					<td>{{.Repo}}</td>
					<td>{{.Reporter}}</td>
					<td>{{.ReporterTeam}}</td>
					<td>{{.CreatedAt}}</td>
					<td class="body">{{.BodyHTML}}</td>
				</tr>
				{{end}}
			</table>
			{{else}}<p class="muted">None</p>{{end}}
		</div>
{{end}}`
