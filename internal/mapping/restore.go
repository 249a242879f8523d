package mapping

import (
	"fmt"

	"datasync/internal/schema"
)

// Restore rebuilds a State from a persisted mapping: the per-position column
// names, the ignore list, and the derivations.
//
// A column whose name is in ignore is ignored (or synthetic, when the name
// has a derivation); any other column is bound to its name. Ignore entries
// that are field names but not column names become explicit field
// exclusions. Bound names need not be in fields; callers validate that
// separately so a stale file can still be opened and repaired.
func Restore(fields []schema.Field, columns, ignore []string, derivations map[string]Derivation) (*State, error) {
	s := New(fields, len(columns))

	ignoreSet := make(map[string]struct{}, len(ignore))
	for _, name := range ignore {
		ignoreSet[name] = struct{}{}
	}
	for name, d := range derivations {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("mapping: restore derivation %q: %w", name, err)
		}
		s.derivations[name] = d
	}

	colNames := make(map[string]int, len(columns))
	for i, name := range columns {
		colNames[name] = i

		_, isIgnored := ignoreSet[name]
		_, isDerived := s.derivations[name]
		_, isField := s.known[name]
		switch {
		case isIgnored && isDerived:
			if j, dup := s.byName[name]; dup {
				return nil, fmt.Errorf("mapping: restore: %q at %d and %d: %w", name, j, i, ErrDuplicateBinding)
			}
			s.cols[i] = Binding{Status: StatusSynthetic, Name: name}
			s.byName[name] = i
		case isIgnored || name == "":
			// Ignored columns keep a placeholder, never a field name, so a
			// later Bind of that field cannot collide.
			s.cols[i] = Binding{Status: StatusIgnored, Name: s.placeholder(i)}
			if isField {
				s.ignoredFields[name] = struct{}{}
			}
		case !isField && isPlaceholderLike(name, i):
			s.cols[i] = Binding{Status: StatusIgnored, Name: s.placeholder(i)}
		default:
			if j, dup := s.byName[name]; dup {
				return nil, fmt.Errorf("mapping: restore: %q at %d and %d: %w", name, j, i, ErrDuplicateBinding)
			}
			s.cols[i] = Binding{Status: StatusBound, Name: name}
			s.byName[name] = i
		}
	}

	for name := range ignoreSet {
		if _, isCol := colNames[name]; isCol {
			continue
		}
		if _, isField := s.known[name]; isField {
			s.ignoredFields[name] = struct{}{}
		}
	}

	s.check()
	return s, nil
}

// isPlaceholderLike reports whether name is the generated placeholder for
// position, with or without clash prefixes.
func isPlaceholderLike(name string, position int) bool {
	want := PlaceholderName(position)
	for len(name) > len(want) && name[0] == '_' {
		name = name[1:]
	}
	return name == want
}
