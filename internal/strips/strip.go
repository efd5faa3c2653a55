package strips

import "strings"

type Kind string

const (
	KindMovie  Kind = "movie"
	KindImage  Kind = "image"
	KindSound  Kind = "sound"
	KindScene  Kind = "scene"
	KindEffect Kind = "effect"
)

type Status string

const (
	StatusUnset      Status = ""
	StatusOnHold     Status = "on_hold"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
)

// Label is the display name shown next to a bound strip.
func (s Status) Label() string {
	switch s {
	case StatusOnHold:
		return "On hold"
	case StatusTodo:
		return "Todo"
	case StatusInProgress:
		return "In progress"
	case StatusUnset:
		return ""
	default:
		return string(s)
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusUnset, StatusOnHold, StatusTodo, StatusInProgress:
		return true
	}
	return false
}

// Position is owned by the editing host and never written by sync.
type Position struct {
	Start         int `json:"start"`
	OffsetStart   int `json:"offset_start"`
	FinalDuration int `json:"final_duration"`
}

// Binding links a strip to a remote shot node. An empty RemoteID means unbound.
type Binding struct {
	RemoteID    string `json:"remote_id,omitempty"`
	IsSynced    bool   `json:"is_synced"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CutIn       int    `json:"cut_in"`
	CutOut      int    `json:"cut_out"`
	Status      Status `json:"status,omitempty"`
	Order       int    `json:"order"`
}

type Strip struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Channel  int      `json:"channel,omitempty"`
	Position Position `json:"position"`
	Binding  Binding  `json:"binding"`
}

func (s Strip) Bound() bool {
	return strings.TrimSpace(s.Binding.RemoteID) != ""
}

// Supported reports whether the strip is a media kind that can carry a shot.
func (s Strip) Supported() bool {
	return s.Kind == KindMovie || s.Kind == KindImage
}

// TimelineStart is the first visible frame, used as the reorder key.
func (s Strip) TimelineStart() int {
	return s.Position.Start + s.Position.OffsetStart
}

// Unbind resets every binding field.
func (s *Strip) Unbind() {
	s.Binding = Binding{}
}

func (s Strip) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrInvalidInput
	}
	if !s.Binding.Status.Valid() {
		return ErrInvalidInput
	}
	return nil
}
