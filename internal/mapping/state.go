// Package mapping holds the authoritative binding of CSV positions to target
// fields and the mutation API used by automatic matching and by user edits.
//
// Every CSV position is in exactly one state:
//
//   - Ignored: no data is taken from it. It carries a generated placeholder
//     name.
//   - Bound(field): its values load directly into field.
//   - Synthetic(field): field is derived (e.g. a composed location), and this
//     position is kept out of direct binding.
//
// At most one position carries any given field name. State keeps a reverse
// index from field name to position next to the per-position array, so that
// rule can be checked on every mutation without scanning.
//
// Mutations return the ordered list of events they caused. State is not safe
// for concurrent use; callers serialise edits.
package mapping

import (
	"errors"
	"fmt"
	"sort"

	"datasync/internal/match"
	"datasync/internal/schema"
)

var (
	// ErrOutOfRange is returned (wrapped in *PositionError) when a position
	// is not a valid CSV position.
	ErrOutOfRange = errors.New("position out of range")

	// ErrUnknownField is returned when a field name is not in the schema.
	ErrUnknownField = errors.New("unknown field")

	// ErrDuplicateBinding is returned by Restore when persisted columns name
	// the same field twice.
	ErrDuplicateBinding = errors.New("field bound to more than one column")
)

// PositionError reports an out-of-range position argument.
type PositionError struct {
	Op       string
	Position int
	Count    int
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("mapping: %s: position %d is outside of the CSV (%d columns)", e.Op, e.Position, e.Count)
}

func (e *PositionError) Unwrap() error { return ErrOutOfRange }

// Status is the state of one CSV position.
type Status string

const (
	StatusIgnored   Status = "ignored"
	StatusBound     Status = "bound"
	StatusSynthetic Status = "synthetic"
)

// Binding is the record for one CSV position. Name is the placeholder when
// ignored and the field name otherwise.
type Binding struct {
	Status Status `json:"status"`
	Name   string `json:"name"`
}

// FieldName returns the bound or synthetic field, or "" when ignored.
func (b Binding) FieldName() string {
	if b.Status == StatusIgnored {
		return ""
	}
	return b.Name
}

// State is the mutable mapping for one loaded CSV.
type State struct {
	fields []schema.Field
	known  map[string]int

	cols   []Binding
	byName map[string]int

	ignoredFields map[string]struct{}
	derivations   map[string]Derivation

	last match.Result
}

// New returns a State with columnCount positions, all ignored under fresh
// placeholder names.
func New(fields []schema.Field, columnCount int) *State {
	s := &State{
		fields:        fields,
		known:         make(map[string]int, len(fields)),
		byName:        make(map[string]int),
		ignoredFields: make(map[string]struct{}),
		derivations:   make(map[string]Derivation),
	}
	for i, f := range fields {
		s.known[f.FieldName] = i
	}
	s.resetColumns(columnCount)
	return s
}

func (s *State) resetColumns(n int) {
	s.cols = make([]Binding, n)
	clear(s.byName)
	for i := range s.cols {
		s.cols[i] = Binding{Status: StatusIgnored, Name: s.placeholder(i)}
	}
	s.last = match.Result{}
}

// PlaceholderName is the generated label for an ignored column at position.
func PlaceholderName(position int) string {
	return fmt.Sprintf("col_%d", position)
}

// placeholder returns PlaceholderName, prefixed until it cannot be mistaken
// for a target field.
func (s *State) placeholder(position int) string {
	name := PlaceholderName(position)
	for {
		if _, clash := s.known[name]; !clash {
			return name
		}
		name = "_" + name
	}
}

// Fields returns the target schema the state was built for.
func (s *State) Fields() []schema.Field { return s.fields }

// ColumnCount returns the number of CSV positions.
func (s *State) ColumnCount() int { return len(s.cols) }

// At returns the binding at position.
func (s *State) At(position int) (Binding, error) {
	if err := s.inRange("at", position); err != nil {
		return Binding{}, err
	}
	return s.cols[position], nil
}

// Columns returns a copy of every binding in position order.
func (s *State) Columns() []Binding {
	out := make([]Binding, len(s.cols))
	copy(out, s.cols)
	return out
}

// PositionOf returns the position that carries fieldName (bound or
// synthetic).
func (s *State) PositionOf(fieldName string) (int, bool) {
	p, ok := s.byName[fieldName]
	return p, ok
}

// IsFieldIgnored reports whether fieldName was explicitly excluded.
func (s *State) IsFieldIgnored(fieldName string) bool {
	_, ok := s.ignoredFields[fieldName]
	return ok
}

// IgnoredFields returns the explicitly excluded field names, sorted.
func (s *State) IgnoredFields() []string {
	out := make([]string, 0, len(s.ignoredFields))
	for f := range s.ignoredFields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Derivation returns the derivation recorded for fieldName.
func (s *State) Derivation(fieldName string) (Derivation, bool) {
	d, ok := s.derivations[fieldName]
	return d, ok
}

// Derivations returns a copy of every recorded derivation.
func (s *State) Derivations() map[string]Derivation {
	out := make(map[string]Derivation, len(s.derivations))
	for k, v := range s.derivations {
		out[k] = v
	}
	return out
}

// LastMatch returns the diagnostics of the most recent automatic match.
func (s *State) LastMatch() match.Result { return s.last }

func (s *State) inRange(op string, position int) error {
	if position < 0 || position >= len(s.cols) {
		return &PositionError{Op: op, Position: position, Count: len(s.cols)}
	}
	return nil
}

func (s *State) requireField(fieldName string) error {
	if _, ok := s.known[fieldName]; !ok {
		return fmt.Errorf("mapping: %q: %w", fieldName, ErrUnknownField)
	}
	return nil
}

// release turns position back into a plain ignored column with a fresh
// placeholder, dropping whatever field it carried.
func (s *State) release(position int) Event {
	if b := s.cols[position]; b.Status != StatusIgnored {
		delete(s.byName, b.Name)
	}
	s.cols[position] = Binding{Status: StatusIgnored, Name: s.placeholder(position)}
	return ignored(position, s.cols[position].Name)
}

// Bind binds fieldName to position.
//
// If fieldName is already carried by another position, that position is
// reset to a fresh placeholder and ignored first. Any derivation recorded for
// fieldName, and any explicit exclusion of it, is cleared.
func (s *State) Bind(fieldName string, position int) ([]Event, error) {
	if err := s.inRange("bind", position); err != nil {
		return nil, err
	}
	if err := s.requireField(fieldName); err != nil {
		return nil, err
	}

	var evs []Event
	if q, ok := s.byName[fieldName]; ok && q != position {
		evs = append(evs, s.release(q))
	}
	if b := s.cols[position]; b.Status != StatusIgnored && b.Name != fieldName {
		delete(s.byName, b.Name)
	}
	if _, ok := s.derivations[fieldName]; ok {
		delete(s.derivations, fieldName)
		evs = append(evs, Event{Kind: EventSyntheticRemoved, Position: -1, Field: fieldName})
	}
	delete(s.ignoredFields, fieldName)

	s.cols[position] = Binding{Status: StatusBound, Name: fieldName}
	s.byName[fieldName] = position
	evs = append(evs, bound(position, fieldName))

	s.check()
	return evs, nil
}

// Ignore marks position ignored. Ignoring a bound or synthetic position
// releases its field and gives it a fresh placeholder; ignoring an ignored
// position changes nothing but still reports the event.
func (s *State) Ignore(position int) ([]Event, error) {
	if err := s.inRange("ignore", position); err != nil {
		return nil, err
	}
	var ev Event
	if b := s.cols[position]; b.Status == StatusIgnored {
		ev = ignored(position, b.Name)
	} else {
		ev = s.release(position)
	}
	s.check()
	return []Event{ev}, nil
}

// IgnoreField explicitly excludes a target field, so it no longer shows up
// as unmapped. A position bound to it is released.
func (s *State) IgnoreField(fieldName string) ([]Event, error) {
	if err := s.requireField(fieldName); err != nil {
		return nil, err
	}
	var evs []Event
	if p, ok := s.byName[fieldName]; ok && s.cols[p].Status == StatusBound {
		evs = append(evs, s.release(p))
	}
	s.ignoredFields[fieldName] = struct{}{}
	evs = append(evs, Event{Kind: EventFieldIgnored, Position: -1, Field: fieldName})
	s.check()
	return evs, nil
}

// MarkSynthetic records a derivation for fieldName. If a position was bound
// to fieldName it becomes Synthetic: it keeps the name but no longer feeds the
// field directly.
func (s *State) MarkSynthetic(fieldName string, d Derivation) ([]Event, error) {
	if err := s.requireField(fieldName); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	s.derivations[fieldName] = d
	delete(s.ignoredFields, fieldName)

	ev := Event{Kind: EventSynthetic, Position: -1, Field: fieldName, Name: string(d.Kind)}
	if p, ok := s.byName[fieldName]; ok {
		s.cols[p].Status = StatusSynthetic
		ev.Position = p
	}
	s.check()
	return []Event{ev}, nil
}

// RemoveSynthetic drops the derivation for fieldName. A position left
// carrying the synthetic name is released.
func (s *State) RemoveSynthetic(fieldName string) []Event {
	if _, ok := s.derivations[fieldName]; !ok {
		return nil
	}
	delete(s.derivations, fieldName)

	var evs []Event
	if p, ok := s.byName[fieldName]; ok && s.cols[p].Status == StatusSynthetic {
		evs = append(evs, s.release(p))
	}
	evs = append(evs, Event{Kind: EventSyntheticRemoved, Position: -1, Field: fieldName})
	s.check()
	return evs
}

// UnmappedTargetFields returns, in schema order, every field that no
// position carries, that is not explicitly ignored, and that has no
// derivation.
func (s *State) UnmappedTargetFields() []schema.Field {
	var out []schema.Field
	for _, f := range s.fields {
		if _, ok := s.byName[f.FieldName]; ok {
			continue
		}
		if _, ok := s.ignoredFields[f.FieldName]; ok {
			continue
		}
		if _, ok := s.derivations[f.FieldName]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

// AutoMatch runs the matcher over headers (one per position) and applies
// the result: matched positions are bound, the rest ignored. Fields that
// are explicitly ignored or derived take no part.
func (s *State) AutoMatch(headers []string) ([]Event, error) {
	if len(headers) != len(s.cols) {
		return nil, fmt.Errorf("mapping: automatch: %d headers for %d columns", len(headers), len(s.cols))
	}
	candidates := make([]schema.Field, 0, len(s.fields))
	for _, f := range s.fields {
		if _, skip := s.ignoredFields[f.FieldName]; skip {
			continue
		}
		if _, skip := s.derivations[f.FieldName]; skip {
			continue
		}
		candidates = append(candidates, f)
	}

	res := match.Match(headers, candidates)
	var evs []Event
	for _, a := range res.Assignments {
		var (
			more []Event
			err  error
		)
		if a.Ignored() {
			more, err = s.Ignore(a.Position)
		} else {
			more, err = s.Bind(a.FieldName, a.Position)
		}
		if err != nil {
			return evs, err
		}
		evs = append(evs, more...)
	}
	s.last = res
	return evs, nil
}

// Reshape discards every binding, sizes the state to len(headers) fresh
// placeholder positions and re-runs automatic matching. Derivations and
// explicit field exclusions describe target fields, not positions, and are
// kept.
func (s *State) Reshape(headers []string) ([]Event, error) {
	s.resetColumns(len(headers))
	evs := make([]Event, 0, 1+2*len(headers))
	evs = append(evs, Event{Kind: EventReshaped, Position: -1, Columns: len(headers)})
	for i, b := range s.cols {
		evs = append(evs, ignored(i, b.Name))
	}
	more, err := s.AutoMatch(headers)
	return append(evs, more...), err
}

// check asserts the injectivity invariant. A failure is a programming error
// in this package, not a runtime condition.
func (s *State) check() {
	carried := 0
	for i, b := range s.cols {
		if b.Status == StatusIgnored {
			continue
		}
		carried++
		if p, ok := s.byName[b.Name]; !ok || p != i {
			panic(fmt.Sprintf("mapping: position %d carries %q but index says %d (%v)", i, b.Name, p, ok))
		}
	}
	if carried != len(s.byName) {
		panic(fmt.Sprintf("mapping: %d positions carry fields but index has %d entries", carried, len(s.byName)))
	}
}
