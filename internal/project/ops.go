package project

import (
	"fmt"
	"strconv"
	"strings"
)

// NewScene returns the placeholder scene appended by AddScene.
func NewScene(id string) Scene {
	return Scene{ID: id, Title: "New Scene", Goal: "Describe the goal", Risk: "tbd"}
}

// NewShot returns the placeholder shot appended by AddShot.
func NewShot(id string) Shot {
	return Shot{ID: id, SceneID: "E1", Title: "New Shot", Status: StatusTodo, Priority: PriorityMedium}
}

// AddScene appends a placeholder scene with the next free E<n> id.
func AddScene(scenes []Scene) ([]Scene, Scene) {
	ids := make([]string, len(scenes))
	for i, s := range scenes {
		ids[i] = s.ID
	}
	scene := NewScene(nextID("E", ids))
	out := make([]Scene, 0, len(scenes)+1)
	out = append(out, scenes...)
	return append(out, scene), scene
}

// FindScene returns the scene with the given id.
func FindScene(scenes []Scene, id string) (Scene, bool) {
	for _, s := range scenes {
		if s.ID == id {
			return s, true
		}
	}
	return Scene{}, false
}

// UpdateScene replaces the scene identified by originalID with updated,
// or appends updated when no scene has that id. The input slice is not
// modified.
func UpdateScene(scenes []Scene, originalID string, updated Scene) []Scene {
	out := make([]Scene, 0, len(scenes)+1)
	replaced := false
	for _, s := range scenes {
		if !replaced && s.ID == originalID {
			out = append(out, updated)
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, updated)
	}
	return out
}

// DeleteScene drops every scene with the given id.
func DeleteScene(scenes []Scene, id string) []Scene {
	out := make([]Scene, 0, len(scenes))
	for _, s := range scenes {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

// AddShot appends a placeholder shot with the next free T<n> id.
func AddShot(shots []Shot) ([]Shot, Shot) {
	ids := make([]string, len(shots))
	for i, s := range shots {
		ids[i] = s.ID
	}
	shot := NewShot(nextID("T", ids))
	out := make([]Shot, 0, len(shots)+1)
	out = append(out, shots...)
	return append(out, shot), shot
}

// FindShot returns the shot with the given id.
func FindShot(shots []Shot, id string) (Shot, bool) {
	for _, s := range shots {
		if s.ID == id {
			return s, true
		}
	}
	return Shot{}, false
}

// UpdateShot replaces the shot identified by originalID with updated,
// or appends updated when no shot has that id.
func UpdateShot(shots []Shot, originalID string, updated Shot) []Shot {
	out := make([]Shot, 0, len(shots)+1)
	replaced := false
	for _, s := range shots {
		if !replaced && s.ID == originalID {
			out = append(out, updated)
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, updated)
	}
	return out
}

// DeleteShot drops every shot with the given id.
func DeleteShot(shots []Shot, id string) []Shot {
	out := make([]Shot, 0, len(shots))
	for _, s := range shots {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

// nextID picks prefix+(max numeric suffix + 1). When any id does not
// carry a numeric suffix the count of ids is used instead.
func nextID(prefix string, ids []string) string {
	if len(ids) == 0 {
		return prefix + "1"
	}
	highest := 0
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimLeft(id, prefix))
		if err != nil {
			return fmt.Sprintf("%s%d", prefix, len(ids)+1)
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%d", prefix, highest+1)
}
