package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"specstudio/internal/project"
)

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "heading levels",
			input:    "## Product Overview\n### Details",
			expected: "<h2>Product Overview</h2>\n<h3>Details</h3>\n",
		},
		{
			name:     "line breaks kept",
			input:    "One-liner: ship it.\nAudience: builders.",
			expected: "<p>One-liner: ship it.<br>\nAudience: builders.</p>\n",
		},
		{
			name:     "bullet list",
			input:    "- first\n- second\n\nafter",
			expected: "<ul>\n<li>first</li>\n<li>second</li>\n</ul>\n<p>after</p>\n",
		},
		{
			name:     "ordered list",
			input:    "1. first\n2. second",
			expected: "<ol>\n<li>first</li>\n<li>second</li>\n</ol>\n",
		},
		{
			name:     "emphasis and links",
			input:    "**bold** and [link](https://x.example)",
			expected: "<p><strong>bold</strong> and <a href=\"https://x.example\">link</a></p>\n",
		},
		{
			name:     "fenced code",
			input:    "```\ncode block\n```",
			expected: "<pre><code>code block\n</code></pre>\n",
		},
		{
			name:     "inline code and escaping",
			input:    "Use `sqlite3.Row` & care",
			expected: "<p>Use <code>sqlite3.Row</code> &amp; care</p>\n",
		},
		{
			name:     "hash without space is text",
			input:    "#hashtag",
			expected: "<p>#hashtag</p>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarkdownToHTML(tt.input)
			if err != nil {
				t.Fatalf("MarkdownToHTML() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("MarkdownToHTML() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestMarkdownToHTMLExtensions(t *testing.T) {
	got, err := MarkdownToHTML("| a | b |\n|---|---|\n| 1 | 2 |\n\n- [x] done\n\n~~old~~\n\n<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("MarkdownToHTML() error = %v", err)
	}
	for _, want := range []string{"<table>", "<td>1</td>", `type="checkbox"`, "<del>old</del>"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw html passed through:\n%s", got)
	}
}

func TestFileSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Spec Studio", "spec-studio"},
		{"PRD v1.2: Checkout", "prd-v12-checkout"},
		{"  --Rules & Packs--  ", "rules-packs"},
		{"Don't Panic", "dont-panic"},
		{"Café", "caf"},
		{"", "prd"},
		{"!!!", "prd"},
		{strings.Repeat("ab ", 30), strings.TrimRight(strings.Repeat("ab-", 20), "-")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := fileSlug(tt.input); got != tt.want {
				t.Errorf("fileSlug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRenderDocumentHTML(t *testing.T) {
	snap := project.Default()
	snap.Shots[0].Checklist = []project.ChecklistItem{{Text: "migration runs", Tag: project.TagTest}}
	data, err := NewTemplateData(snap, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewTemplateData() error = %v", err)
	}

	html, err := RenderDocumentHTML(data)
	if err != nil {
		t.Fatalf("RenderDocumentHTML() error = %v", err)
	}

	for _, want := range []string{
		"<title>Product Overview</title>",
		"<h2>Product Overview</h2>",
		"Core CRUD",
		"Build items table",
		"migration runs",
		"packs: core",
		"Mar 4, 2026",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "&lt;h2&gt;") {
		t.Error("PRD HTML was escaped - should be rendered as markup")
	}
}

func TestTemplateDataSanitizesContent(t *testing.T) {
	data := TemplateData{ContentHTML: sanitizePRD(`<p>ok</p><script>alert(1)</script>`)}
	if strings.Contains(string(data.ContentHTML), "script") {
		t.Fatalf("sanitized content still has script: %s", data.ContentHTML)
	}
	if !strings.Contains(string(data.ContentHTML), "<p>ok</p>") {
		t.Fatalf("sanitized content lost markup: %s", data.ContentHTML)
	}
}

func TestDocumentTitle(t *testing.T) {
	if got := DocumentTitle("intro\n# Spec Studio\n## Other"); got != "Spec Studio" {
		t.Fatalf("DocumentTitle() = %q", got)
	}
	if got := DocumentTitle("#\n## **Spec** `Studio`"); got != "Spec Studio" {
		t.Fatalf("DocumentTitle() with inline markup = %q", got)
	}
	if got := DocumentTitle("no headings"); got != "Product Requirements" {
		t.Fatalf("DocumentTitle() = %q", got)
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(body)
	}
	return files
}

func TestBundleContents(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	result, err := Bundle(project.Default(), now)
	if err != nil {
		t.Fatalf("Bundle() error = %v", err)
	}
	if result.Filename != "artifacts_1700000000.zip" || result.MimeType != "application/zip" {
		t.Fatalf("unexpected result meta: %s %s", result.Filename, result.MimeType)
	}

	files := readZip(t, result.Data)
	if len(files) != 4 {
		t.Fatalf("zip has %d files, want 4", len(files))
	}
	if files[PathPRD] != project.DefaultScript {
		t.Error("PRD.md content mismatch")
	}
	if files[PathRules] != project.DefaultRules {
		t.Error("rules content mismatch")
	}

	var epics []project.Scene
	if err := json.Unmarshal([]byte(files[PathEpics]), &epics); err != nil {
		t.Fatalf("epics.json: %v", err)
	}
	if len(epics) != 1 || epics[0].ID != "E1" {
		t.Fatalf("epics = %+v", epics)
	}
	var tickets []project.Shot
	if err := json.Unmarshal([]byte(files[PathTickets]), &tickets); err != nil {
		t.Fatalf("tickets.json: %v", err)
	}
	if len(tickets) != 2 || tickets[1].Status != project.StatusInProgress {
		t.Fatalf("tickets = %+v", tickets)
	}
}

func TestBundleEmptyListsAreArrays(t *testing.T) {
	result, err := Bundle(project.Snapshot{}, time.Now())
	if err != nil {
		t.Fatalf("Bundle() error = %v", err)
	}
	files := readZip(t, result.Data)
	if files[PathEpics] != "[]\n" || files[PathTickets] != "[]\n" {
		t.Fatalf("empty lists = %q / %q", files[PathEpics], files[PathTickets])
	}
}

func TestExportPDFWithoutChrome(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { lookPath = orig }()

	svc := NewService(time.Second)
	_, err := svc.Export(context.Background(), Request{Format: FormatPDF, Snapshot: project.Default()})
	if !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("Export() error = %v, want ErrPDFDependencyMissing", err)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(time.Second)
	_, err := svc.Export(context.Background(), Request{Format: "docx"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Export() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExportZipUsesClock(t *testing.T) {
	svc := NewService(time.Second)
	svc.now = func() time.Time { return time.Unix(42, 0) }
	result, err := svc.Export(context.Background(), Request{Format: FormatZip, Snapshot: project.Default()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "artifacts_42.zip" {
		t.Fatalf("Filename = %q", result.Filename)
	}
}
