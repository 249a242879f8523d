package mapping

// EventKind names a change to the mapping.
type EventKind string

const (
	// EventReshaped: the CSV changed shape and every binding was discarded.
	// Columns carries the new column count.
	EventReshaped EventKind = "reshaped"
	// EventBound: Position is now bound to Field.
	EventBound EventKind = "bound"
	// EventIgnored: Position is now ignored under the placeholder Name.
	EventIgnored EventKind = "ignored"
	// EventSynthetic: Field now comes from a derivation. Position is the
	// column that was bound to Field before, or -1.
	EventSynthetic EventKind = "synthetic"
	// EventSyntheticRemoved: Field no longer has a derivation.
	EventSyntheticRemoved EventKind = "synthetic_removed"
	// EventFieldIgnored: the target Field was explicitly excluded.
	EventFieldIgnored EventKind = "field_ignored"
	// EventOptionsChanged: a file-level option changed (Name is the option).
	EventOptionsChanged EventKind = "options_changed"
)

// Event is one entry in the ordered change list returned by every mutation.
// Callers forward these to their own notification mechanism; State never
// notifies anyone itself.
type Event struct {
	Kind     EventKind `json:"kind"`
	Position int       `json:"position"`
	Field    string    `json:"field,omitempty"`
	Name     string    `json:"name,omitempty"`
	Columns  int       `json:"columns,omitempty"`
}

func bound(pos int, field string) Event {
	return Event{Kind: EventBound, Position: pos, Field: field, Name: field}
}

func ignored(pos int, name string) Event {
	return Event{Kind: EventIgnored, Position: pos, Name: name}
}

// OptionsChanged builds the event emitted when a file option changes.
func OptionsChanged(option string) Event {
	return Event{Kind: EventOptionsChanged, Position: -1, Name: option}
}
