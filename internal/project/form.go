package project

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Field caps applied when a snapshot is assembled from form input.
const (
	MaxScriptRunes      = 200_000
	MaxRulesRunes       = 100_000
	MaxIDRunes          = 32
	MaxTitleRunes       = 200
	MaxGoalRunes        = 1_000
	MaxRiskRunes        = 200
	MaxDescriptionRunes = 2_000
	MaxChecklistRunes   = 280
	MaxScenes           = 100
	MaxShots            = 500
	MaxChecklistItems   = 20
)

// Form is a snapshot assembled from submitted form fields. List fields
// that failed to parse are empty in Snapshot and carry their error;
// callers decide whether to substitute defaults or reject the request.
type Form struct {
	Snapshot  Snapshot
	ScenesErr error
	ShotsErr  error
}

// Err returns the first list parse error, if any.
func (f Form) Err() error {
	if f.ScenesErr != nil {
		return f.ScenesErr
	}
	return f.ShotsErr
}

// WithDefaults returns the snapshot with the starter lists substituted
// for any list that failed to parse.
func (f Form) WithDefaults() Snapshot {
	snap := f.Snapshot
	if f.ScenesErr != nil {
		snap.Scenes = DefaultScenes()
	}
	if f.ShotsErr != nil {
		snap.Shots = DefaultShots()
	}
	return snap
}

// FromForm assembles a snapshot from form values. Absent fields fall back
// to the starter content; present fields are cleaned and capped.
func FromForm(form url.Values) Form {
	var f Form
	snap := Snapshot{
		Script: DefaultScript,
		Rules:  DefaultRules,
		Scenes: DefaultScenes(),
		Shots:  DefaultShots(),
	}
	if form.Has("script_text") {
		snap.Script = CleanText(form.Get("script_text"), MaxScriptRunes)
	}
	if form.Has("rules_text") {
		snap.Rules = CleanText(form.Get("rules_text"), MaxRulesRunes)
	}
	if form.Has("scenes_json") {
		scenes, err := ParseScenes(form.Get("scenes_json"))
		if err != nil {
			f.ScenesErr = err
			scenes = []Scene{}
		}
		snap.Scenes = scenes
	}
	if form.Has("shots_json") {
		shots, err := ParseShots(form.Get("shots_json"))
		if err != nil {
			f.ShotsErr = err
			shots = []Shot{}
		}
		snap.Shots = shots
	}
	snap.Packs = Packs{
		Core:        true,
		Opinionated: form.Get(PackOpinionated) != "",
		Strict:      form.Get(PackStrict) != "",
	}
	f.Snapshot = snap
	return f
}

type formScene struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Goal  string `json:"goal"`
	Risk  string `json:"risk"`
}

type formChecklistItem struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

type formShot struct {
	ID          string              `json:"id"`
	SceneID     string              `json:"epic_id"`
	Title       string              `json:"title"`
	Status      string              `json:"status"`
	Priority    string              `json:"priority"`
	Description string              `json:"description"`
	Checklist   []formChecklistItem `json:"checklist"`
}

// ParseScenes parses the scenes_json form field. An empty field is an
// empty list; malformed JSON is an error wrapping ErrListParse.
func ParseScenes(raw string) ([]Scene, error) {
	out := []Scene{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var items []formScene
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: scenes: %v", ErrListParse, err)
	}
	for _, item := range items {
		if len(out) == MaxScenes {
			break
		}
		out = append(out, CleanScene(Scene(item)))
	}
	return out, nil
}

// ParseShots parses the shots_json form field.
func ParseShots(raw string) ([]Shot, error) {
	out := []Shot{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var items []formShot
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: shots: %v", ErrListParse, err)
	}
	for _, item := range items {
		if len(out) == MaxShots {
			break
		}
		shot := Shot{
			ID:          item.ID,
			SceneID:     item.SceneID,
			Title:       item.Title,
			Status:      ParseStatus(item.Status),
			Priority:    ParsePriority(item.Priority),
			Description: item.Description,
		}
		for _, c := range item.Checklist {
			shot.Checklist = append(shot.Checklist, ChecklistItem{Text: c.Text, Tag: ParseTag(c.Tag)})
		}
		out = append(out, CleanShot(shot))
	}
	return out, nil
}

// CleanScene caps every scene field.
func CleanScene(s Scene) Scene {
	return Scene{
		ID:    CleanLine(s.ID, MaxIDRunes),
		Title: CleanLine(s.Title, MaxTitleRunes),
		Goal:  CleanText(s.Goal, MaxGoalRunes),
		Risk:  CleanLine(s.Risk, MaxRiskRunes),
	}
}

// CleanShot caps every shot field and coerces its enums.
func CleanShot(s Shot) Shot {
	out := Shot{
		ID:          CleanLine(s.ID, MaxIDRunes),
		SceneID:     CleanLine(s.SceneID, MaxIDRunes),
		Title:       CleanLine(s.Title, MaxTitleRunes),
		Status:      ParseStatus(string(s.Status)),
		Priority:    ParsePriority(string(s.Priority)),
		Description: CleanText(s.Description, MaxDescriptionRunes),
	}
	for _, c := range s.Checklist {
		if len(out.Checklist) == MaxChecklistItems {
			break
		}
		text := CleanLine(c.Text, MaxChecklistRunes)
		if text == "" {
			continue
		}
		out.Checklist = append(out.Checklist, ChecklistItem{Text: text, Tag: ParseTag(string(c.Tag))})
	}
	return out
}

// ParseChecklist reads one checklist item per line. A line may start with
// a bracketed tag such as "[test]"; untagged lines are acceptance items.
func ParseChecklist(text string) []ChecklistItem {
	var items []ChecklistItem
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tag := TagAcceptance
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				tag = ParseTag(line[1:end])
				line = strings.TrimSpace(line[end+1:])
			}
		}
		if line == "" {
			continue
		}
		items = append(items, ChecklistItem{Text: line, Tag: tag})
	}
	return items
}

// FormatChecklist is the inverse of ParseChecklist.
func FormatChecklist(items []ChecklistItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "["+string(item.Tag)+"] "+item.Text)
	}
	return strings.Join(lines, "\n")
}

// CleanText replaces invalid UTF-8, normalizes line endings and truncates
// to max runes.
func CleanText(s string, max int) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return truncateRunes(s, max)
}

// CleanLine is CleanText for single-line fields: newlines become spaces
// and surrounding space is trimmed.
func CleanLine(s string, max int) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return truncateRunes(strings.TrimSpace(s), max)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// ScenesJSON renders scenes for the hidden scenes_json form field.
func ScenesJSON(scenes []Scene) string {
	if scenes == nil {
		scenes = []Scene{}
	}
	data, _ := json.Marshal(scenes)
	return string(data)
}

// ShotsJSON renders shots for the hidden shots_json form field.
func ShotsJSON(shots []Shot) string {
	if shots == nil {
		shots = []Shot{}
	}
	data, _ := json.Marshal(shots)
	return string(data)
}
