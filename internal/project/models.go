// Package project holds the editable project state: the PRD script, the
// rules file, scenes (exported as epics) and shots (exported as tickets).
package project

import (
	"encoding/json"
	"fmt"
)

// FormatVersion is the snapshot schema version written into every
// encoded payload.
const FormatVersion = 1

// Snapshot is the complete editable project state at a point in time.
type Snapshot struct {
	Script string
	Rules  string
	Scenes []Scene
	Shots  []Shot
	Packs  Packs
}

// Scene is a planning unit, exported as an epic.
type Scene struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Goal  string `json:"goal"`
	Risk  string `json:"risk,omitempty"`
}

// Shot is a unit of work inside a scene, exported as a ticket.
type Shot struct {
	ID          string          `json:"id"`
	SceneID     string          `json:"epic_id"`
	Title       string          `json:"title"`
	Status      Status          `json:"status"`
	Priority    Priority        `json:"priority"`
	Description string          `json:"description,omitempty"`
	Checklist   []ChecklistItem `json:"checklist,omitempty"`
}

// ChecklistItem is one line of a shot's checklist.
type ChecklistItem struct {
	Text string `json:"text"`
	Tag  Tag    `json:"tag"`
}

// Normalize returns the canonical form of s: scene and shot lists are
// never nil and empty checklists are nil.
func (s Snapshot) Normalize() Snapshot {
	out := s
	out.Scenes = make([]Scene, len(s.Scenes))
	copy(out.Scenes, s.Scenes)
	out.Shots = make([]Shot, len(s.Shots))
	for i, shot := range s.Shots {
		if len(shot.Checklist) == 0 {
			shot.Checklist = nil
		} else {
			items := make([]ChecklistItem, len(shot.Checklist))
			copy(items, shot.Checklist)
			shot.Checklist = items
		}
		out.Shots[i] = shot
	}
	return out
}

type sceneFields struct {
	ID    *string `json:"id"`
	Title *string `json:"title"`
	Goal  *string `json:"goal"`
	Risk  string  `json:"risk"`
}

// UnmarshalJSON rejects scenes missing id, title or goal.
func (sc *Scene) UnmarshalJSON(data []byte) error {
	var raw sceneFields
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.ID == nil:
		return fmt.Errorf("%w: scene id", ErrMissingField)
	case raw.Title == nil:
		return fmt.Errorf("%w: scene %q title", ErrMissingField, *raw.ID)
	case raw.Goal == nil:
		return fmt.Errorf("%w: scene %q goal", ErrMissingField, *raw.ID)
	}
	*sc = Scene{ID: *raw.ID, Title: *raw.Title, Goal: *raw.Goal, Risk: raw.Risk}
	return nil
}

type shotFields struct {
	ID          *string         `json:"id"`
	SceneID     *string         `json:"epic_id"`
	Title       *string         `json:"title"`
	Status      *Status         `json:"status"`
	Priority    *Priority       `json:"priority"`
	Description string          `json:"description"`
	Checklist   []ChecklistItem `json:"checklist"`
}

// UnmarshalJSON rejects shots missing a required field or carrying a
// status or priority outside the allowed set.
func (sh *Shot) UnmarshalJSON(data []byte) error {
	var raw shotFields
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.ID == nil:
		return fmt.Errorf("%w: shot id", ErrMissingField)
	case raw.SceneID == nil:
		return fmt.Errorf("%w: shot %q epic_id", ErrMissingField, *raw.ID)
	case raw.Title == nil:
		return fmt.Errorf("%w: shot %q title", ErrMissingField, *raw.ID)
	case raw.Status == nil:
		return fmt.Errorf("%w: shot %q status", ErrMissingField, *raw.ID)
	case raw.Priority == nil:
		return fmt.Errorf("%w: shot %q priority", ErrMissingField, *raw.ID)
	}
	if !raw.Status.Valid() {
		return fmt.Errorf("%w: shot %q status %q", ErrInvalidEnum, *raw.ID, *raw.Status)
	}
	if !raw.Priority.Valid() {
		return fmt.Errorf("%w: shot %q priority %q", ErrInvalidEnum, *raw.ID, *raw.Priority)
	}
	if len(raw.Checklist) == 0 {
		raw.Checklist = nil
	}
	*sh = Shot{
		ID:          *raw.ID,
		SceneID:     *raw.SceneID,
		Title:       *raw.Title,
		Status:      *raw.Status,
		Priority:    *raw.Priority,
		Description: raw.Description,
		Checklist:   raw.Checklist,
	}
	return nil
}

type checklistFields struct {
	Text *string `json:"text"`
	Tag  *Tag    `json:"tag"`
}

// UnmarshalJSON rejects items without text or with an unknown tag.
func (c *ChecklistItem) UnmarshalJSON(data []byte) error {
	var raw checklistFields
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Text == nil {
		return fmt.Errorf("%w: checklist text", ErrMissingField)
	}
	if raw.Tag == nil {
		return fmt.Errorf("%w: checklist tag", ErrMissingField)
	}
	if !raw.Tag.Valid() {
		return fmt.Errorf("%w: checklist tag %q", ErrInvalidEnum, *raw.Tag)
	}
	*c = ChecklistItem{Text: *raw.Text, Tag: *raw.Tag}
	return nil
}
