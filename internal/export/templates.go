package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"specstudio/internal/project"
)

//go:embed templates/document.html
var templateFS embed.FS

var documentTemplate = template.Must(template.New("document.html").Funcs(template.FuncMap{
	"join": strings.Join,
	"stamp": func(t time.Time) string {
		return t.UTC().Format("Jan 2, 2006 15:04 MST")
	},
}).ParseFS(templateFS, "templates/document.html"))

// contentPolicy strips anything outside basic document markup from
// rendered PRD HTML before it is marked safe.
var contentPolicy = bluemonday.UGCPolicy()

func sanitizePRD(raw string) template.HTML {
	return template.HTML(contentPolicy.Sanitize(raw))
}

// TemplateData is the input of the printable PRD page.
type TemplateData struct {
	Title       string
	ContentHTML template.HTML
	GeneratedAt time.Time
	Packs       []string
	Scenes      []project.Scene
	Shots       []project.Shot
}

// NewTemplateData renders the PRD of snap to sanitized HTML and collects
// the rest of the document fields.
func NewTemplateData(snap project.Snapshot, now time.Time) (TemplateData, error) {
	content, err := MarkdownToHTML(snap.Script)
	if err != nil {
		return TemplateData{}, err
	}
	var packs []string
	for _, name := range []string{project.PackCore, project.PackOpinionated, project.PackStrict} {
		if _, ok := snap.Packs.Map()[name]; ok {
			packs = append(packs, strings.TrimPrefix(name, "pack_"))
		}
	}
	return TemplateData{
		Title:       DocumentTitle(snap.Script),
		ContentHTML: sanitizePRD(content),
		GeneratedAt: now,
		Packs:       packs,
		Scenes:      snap.Scenes,
		Shots:       snap.Shots,
	}, nil
}

// RenderDocumentHTML renders the printable PRD page.
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
