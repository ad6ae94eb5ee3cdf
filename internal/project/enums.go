package project

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrMissingField marks a required field absent from encoded content.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidEnum marks a value outside an enum's allowed set.
	ErrInvalidEnum = errors.New("value not allowed")
	// ErrListParse marks a scene or shot list that could not be parsed
	// from its form field.
	ErrListParse = errors.New("list parse failed")
)

// Status is the progress state of a shot.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// Statuses lists the allowed statuses in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusBlocked, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// ParseStatus coerces raw to a status, defaulting to todo.
func ParseStatus(raw string) Status {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return StatusTodo
	}
	return s
}

// Priority orders shots.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the allowed priorities in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority coerces raw to a priority, defaulting to medium.
func ParsePriority(raw string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return PriorityMedium
	}
	return p
}

// Tag classifies a checklist item.
type Tag string

const (
	TagAcceptance Tag = "ac"
	TagTest       Tag = "test"
	TagDoc        Tag = "doc"
	TagRisk       Tag = "risk"
)

// Tags lists the allowed checklist tags in display order.
var Tags = []Tag{TagAcceptance, TagTest, TagDoc, TagRisk}

func (t Tag) Valid() bool {
	switch t {
	case TagAcceptance, TagTest, TagDoc, TagRisk:
		return true
	}
	return false
}

// ParseTag coerces raw to a tag, defaulting to ac.
func ParseTag(raw string) Tag {
	t := Tag(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return TagAcceptance
	}
	return t
}

// Pack names as they appear in forms and encoded snapshots.
const (
	PackCore        = "pack_core"
	PackOpinionated = "pack_opinionated"
	PackStrict      = "pack_strict"
)

const packOn = "on"

// Packs are the feature toggles of a project.
type Packs struct {
	Core        bool
	Opinionated bool
	Strict      bool
}

// MarshalJSON writes only enabled packs, each as "on", in a fixed order.
func (p Packs) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, entry := range []struct {
		name string
		on   bool
	}{
		{PackCore, p.Core},
		{PackOpinionated, p.Opinionated},
		{PackStrict, p.Strict},
	} {
		if !entry.on {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(`"` + entry.name + `":"` + packOn + `"`)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON accepts string or null values; a non-empty string
// enables the pack. Unknown pack names are ignored.
func (p *Packs) UnmarshalJSON(data []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	on := func(name string) bool {
		v, ok := raw[name]
		return ok && v != nil && *v != ""
	}
	*p = Packs{
		Core:        on(PackCore),
		Opinionated: on(PackOpinionated),
		Strict:      on(PackStrict),
	}
	return nil
}

// Map returns the packs in the form representation used by templates,
// with disabled packs absent.
func (p Packs) Map() map[string]string {
	out := map[string]string{}
	if p.Core {
		out[PackCore] = packOn
	}
	if p.Opinionated {
		out[PackOpinionated] = packOn
	}
	if p.Strict {
		out[PackStrict] = packOn
	}
	return out
}
