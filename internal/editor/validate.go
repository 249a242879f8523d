package editor

import (
	"fmt"

	"datasync/internal/config"
	"datasync/internal/mapping"
)

// dateTypes are the dataset types whose sample values are checked against
// the floating timestamp formats.
var dateTypes = map[string]bool{
	"calendar_date":      true,
	"date":               true,
	"floating_timestamp": true,
}

// Validate checks the mapping and the CSV sample. Errors block an import;
// warnings (unmapped dataset fields) do not.
func (e *Editor) Validate() []config.Issue {
	var issues []config.Issue

	if !e.table.RowsContainSameNumberOfColumns() {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     "csv",
			Message:  "rows do not contain the same number of columns; check the separator and quote settings",
		})
	}

	ftc := e.cf.FileType()
	columnNames := make(map[string]bool, len(ftc.Columns))
	for _, c := range ftc.Columns {
		columnNames[c] = true
	}

	for i, b := range e.state.Columns() {
		if b.Status != mapping.StatusBound {
			continue
		}
		if _, ok := e.dataset.Field(b.Name); !ok {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError,
				Path:     fmt.Sprintf("mapping.columns[%d]", i),
				Message:  fmt.Sprintf("%q is not a field of dataset %s", b.Name, e.dataset.ID),
			})
		}
	}

	for name, d := range e.state.Derivations() {
		for _, c := range d.Components() {
			if !columnNames[c] {
				issues = append(issues, config.Issue{
					Severity: config.SeverityError,
					Path:     "mapping.synthetic." + name,
					Message:  fmt.Sprintf("source column %q is not a column of the control file", c),
				})
			}
		}
	}

	if iss, ok := e.checkDates(); !ok {
		issues = append(issues, iss)
	}

	for _, f := range e.state.UnmappedTargetFields() {
		issues = append(issues, config.Issue{
			Severity: config.SeverityWarning,
			Path:     "mapping.unmapped",
			Message:  fmt.Sprintf("dataset field %q has no CSV column; it will be left empty", f.FieldName),
		})
	}
	return issues
}

// checkDates parses every sampled value of date-typed bound columns and
// reports the first one no configured format accepts. Blank values pass.
func (e *Editor) checkDates() (config.Issue, bool) {
	formats := e.cf.FileType().FloatingTimestampFormat
	for col, b := range e.state.Columns() {
		if b.Status != mapping.StatusBound {
			continue
		}
		f, ok := e.dataset.Field(b.Name)
		if !ok || !dateTypes[f.DataType] {
			continue
		}
		for row := 0; row < e.table.RowCount(); row++ {
			v := e.table.Value(row, col)
			if !canParseDateTime(v, formats) {
				return config.Issue{
					Severity: config.SeverityError,
					Path:     fmt.Sprintf("mapping.columns[%d]", col),
					Message:  fmt.Sprintf("cannot parse the datetime value %q in column %q with formats %v", v, b.Name, formats),
				}, false
			}
		}
	}
	return config.Issue{}, true
}
