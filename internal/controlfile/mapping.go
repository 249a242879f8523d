package controlfile

import (
	"fmt"
	"sort"

	"datasync/internal/mapping"
	"datasync/internal/schema"
)

// ApplyState writes s into the control file's columns, ignore list and
// synthetic maps, replacing what was there.
//
// Ignored positions appear in ignoreColumns under their placeholder.
// Synthetic positions keep the field name in columns and are also listed in
// ignoreColumns, since their values are not loaded directly.
func (c *ControlFile) ApplyState(s *mapping.State) {
	ftc := c.FileType()
	cols := s.Columns()

	ftc.Columns = make([]string, len(cols))
	ignore := map[string]struct{}{}
	for i, b := range cols {
		ftc.Columns[i] = b.Name
		if b.Status != mapping.StatusBound {
			ignore[b.Name] = struct{}{}
		}
	}
	for _, f := range s.IgnoredFields() {
		ignore[f] = struct{}{}
	}
	ftc.IgnoreColumns = make([]string, 0, len(ignore))
	for name := range ignore {
		ftc.IgnoreColumns = append(ftc.IgnoreColumns, name)
	}
	sort.Strings(ftc.IgnoreColumns)

	ftc.SyntheticLocations = nil
	ftc.SyntheticPoints = nil
	for name, d := range s.Derivations() {
		sc := SyntheticColumn{
			Address:   d.Address,
			City:      d.City,
			State:     d.State,
			Zip:       d.Zip,
			Latitude:  d.Latitude,
			Longitude: d.Longitude,
		}
		switch d.Kind {
		case mapping.DerivationPoint:
			if ftc.SyntheticPoints == nil {
				ftc.SyntheticPoints = map[string]SyntheticColumn{}
			}
			ftc.SyntheticPoints[name] = sc
		default:
			if ftc.SyntheticLocations == nil {
				ftc.SyntheticLocations = map[string]SyntheticColumn{}
			}
			ftc.SyntheticLocations[name] = sc
		}
	}
}

// FromState builds a fresh control file of kind from s.
func FromState(kind Kind, s *mapping.State) *ControlFile {
	cf := New(kind)
	cf.ApplyState(s)
	return cf
}

// Derivations returns the synthetic maps as mapping derivations.
func (f *FileTypeControl) Derivations() map[string]mapping.Derivation {
	out := make(map[string]mapping.Derivation, len(f.SyntheticLocations)+len(f.SyntheticPoints))
	add := func(kind mapping.DerivationKind, m map[string]SyntheticColumn) {
		for name, sc := range m {
			out[name] = mapping.Derivation{
				Kind:      kind,
				Address:   sc.Address,
				City:      sc.City,
				State:     sc.State,
				Zip:       sc.Zip,
				Latitude:  sc.Latitude,
				Longitude: sc.Longitude,
			}
		}
	}
	add(mapping.DerivationLocation, f.SyntheticLocations)
	add(mapping.DerivationPoint, f.SyntheticPoints)
	return out
}

// Restore builds a mapping state for fields from the stored columns.
// It fails when the file has no columns or names a field twice.
func (c *ControlFile) Restore(fields []schema.Field) (*mapping.State, error) {
	ftc := c.FileType()
	if ftc == nil {
		return nil, ErrNoFileType
	}
	if !ftc.HasColumns() {
		return nil, fmt.Errorf("controlfile: no columns to restore")
	}
	s, err := mapping.Restore(fields, ftc.Columns, ftc.IgnoreColumns, ftc.Derivations())
	if err != nil {
		return nil, fmt.Errorf("controlfile: %w", err)
	}
	return s, nil
}
