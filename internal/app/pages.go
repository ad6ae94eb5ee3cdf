package app

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"specstudio/internal/project"
)

//go:embed templates/*.html templates/partials/*.html
var pageFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"checklist": project.FormatChecklist,
}).ParseFS(pageFS, "templates/*.html", "templates/partials/*.html"))

// Editor tabs in display order.
const (
	tabScript = "script"
	tabRules  = "rules"
	tabScenes = "scenes"
	tabShots  = "shots"
)

type tabLink struct {
	ID    string
	Label string
}

var tabs = []tabLink{
	{tabScript, "Script"},
	{tabRules, "Rules"},
	{tabScenes, "Scenes"},
	{tabShots, "Shots"},
}

type pageData struct {
	Title          string
	Tab            string
	Tabs           []tabLink
	Snapshot       project.Snapshot
	ScenesJSON     string
	ShotsJSON      string
	EditingScene   *project.Scene
	EditingShot    *project.Shot
	Notice         string
	OOB            bool
	ArchiveEnabled bool
	Statuses       []project.Status
	Priorities     []project.Priority
	Tags           []project.Tag
}

func (s *HTTPServer) newPageData(tab string, snap project.Snapshot) pageData {
	return pageData{
		Title:          "SpecStudio",
		Tab:            tab,
		Tabs:           tabs,
		Snapshot:       snap,
		ScenesJSON:     project.ScenesJSON(snap.Scenes),
		ShotsJSON:      project.ShotsJSON(snap.Shots),
		ArchiveEnabled: s.archive != nil,
		Statuses:       project.Statuses,
		Priorities:     project.Priorities,
		Tags:           project.Tags,
	}
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index", s.newPageData(tabScript, project.Default()))
}

// handlePanel applies one list operation to the submitted project and
// renders the active panel plus an out-of-band tabs update.
func (s *HTTPServer) handlePanel(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readForm(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	tab := normalizeTab(query.Get("tab"))
	op := query.Get("op")
	id := query.Get("id")

	data := s.newPageData(tab, snap)
	switch tab {
	case tabScenes:
		applySceneOp(&data, op, id, r.PostForm)
	case tabShots:
		applyShotOp(&data, op, id, r.PostForm)
	}
	data.ScenesJSON = project.ScenesJSON(data.Snapshot.Scenes)
	data.ShotsJSON = project.ShotsJSON(data.Snapshot.Shots)

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "panel", data); err != nil {
		s.logger.Error("render panel failed", "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	data.OOB = true
	if err := pages.ExecuteTemplate(&buf, "tabs", data); err != nil {
		s.logger.Error("render tabs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func applySceneOp(data *pageData, op, id string, form url.Values) {
	scenes := data.Snapshot.Scenes
	switch op {
	case "add":
		if len(scenes) >= project.MaxScenes {
			data.Notice = "Scene limit reached"
			return
		}
		var scene project.Scene
		scenes, scene = project.AddScene(scenes)
		data.EditingScene = &scene
	case "edit":
		if scene, ok := project.FindScene(scenes, id); ok {
			data.EditingScene = &scene
		}
	case "save":
		originalID := firstNonEmpty(form.Get("original_id"), form.Get("edit_id"))
		scene := project.CleanScene(project.Scene{
			ID:    firstNonEmpty(form.Get("edit_id"), originalID),
			Title: firstNonEmpty(form.Get("edit_title"), "Untitled"),
			Goal:  form.Get("edit_goal"),
			Risk:  form.Get("edit_risk"),
		})
		if scene.ID == "" {
			data.Notice = "Scene id is required"
			return
		}
		if _, exists := project.FindScene(scenes, originalID); !exists && len(scenes) >= project.MaxScenes {
			data.Notice = "Scene limit reached"
			return
		}
		scenes = project.UpdateScene(scenes, originalID, scene)
	case "delete":
		scenes = project.DeleteScene(scenes, id)
	}
	data.Snapshot.Scenes = scenes
}

func applyShotOp(data *pageData, op, id string, form url.Values) {
	shots := data.Snapshot.Shots
	switch op {
	case "add":
		if len(shots) >= project.MaxShots {
			data.Notice = "Shot limit reached"
			return
		}
		var shot project.Shot
		shots, shot = project.AddShot(shots)
		data.EditingShot = &shot
	case "edit":
		if shot, ok := project.FindShot(shots, id); ok {
			data.EditingShot = &shot
		}
	case "save":
		originalID := firstNonEmpty(form.Get("shot_original_id"), form.Get("shot_id"))
		shot := project.CleanShot(project.Shot{
			ID:          firstNonEmpty(form.Get("shot_id"), originalID),
			SceneID:     firstNonEmpty(form.Get("shot_epic_id"), "E1"),
			Title:       firstNonEmpty(form.Get("shot_title"), "Untitled"),
			Status:      project.ParseStatus(form.Get("shot_status")),
			Priority:    project.ParsePriority(form.Get("shot_priority")),
			Description: form.Get("shot_description"),
			Checklist:   project.ParseChecklist(form.Get("shot_checklist")),
		})
		if shot.ID == "" {
			data.Notice = "Shot id is required"
			return
		}
		if _, exists := project.FindShot(shots, originalID); !exists && len(shots) >= project.MaxShots {
			data.Notice = "Shot limit reached"
			return
		}
		shots = project.UpdateShot(shots, originalID, shot)
	case "delete":
		shots = project.DeleteShot(shots, id)
	}
	data.Snapshot.Shots = shots
}

func (s *HTTPServer) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render page failed", "template", name, "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func normalizeTab(tab string) string {
	tab = strings.ToLower(strings.TrimSpace(tab))
	for _, t := range tabs {
		if t.ID == tab {
			return tab
		}
	}
	return tabScript
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
