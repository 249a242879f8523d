// Package schema describes the destination dataset a CSV is mapped onto and
// the providers that can load it.
//
// A Dataset is an ordered list of Fields. The order is the presentation order
// of the remote dataset (or table) and is significant: the matcher uses it to
// break ties between equally good candidate fields.
package schema

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field is a single target column of the destination dataset.
//
// FieldName is the unique machine identifier (e.g. "first_name"). HumanName is
// the display name (e.g. "First Name"). DataType is the declared type tag
// (e.g. "text", "number", "calendar_date"); it drives downstream validation
// and is not consulted when matching.
type Field struct {
	FieldName string `json:"fieldName" yaml:"fieldName"`
	HumanName string `json:"name" yaml:"name"`
	DataType  string `json:"dataTypeName" yaml:"dataTypeName"`
}

// Dataset is the ordered target schema.
type Dataset struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"columns" yaml:"columns"`
}

// Provider loads a Dataset from some backing system.
type Provider interface {
	Dataset(ctx context.Context) (Dataset, error)
}

// Field returns the field with the given field name.
func (d Dataset) Field(fieldName string) (Field, bool) {
	for _, f := range d.Fields {
		if f.FieldName == fieldName {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in presentation order.
func (d Dataset) FieldNames() []string {
	out := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = f.FieldName
	}
	return out
}

// Validate reports empty or duplicate field names. Field names are the
// identity of a field; two fields sharing one would make bindings ambiguous.
func (d Dataset) Validate() error {
	seen := make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		if strings.TrimSpace(f.FieldName) == "" {
			return fmt.Errorf("schema: field %d has an empty field name", i)
		}
		if j, ok := seen[f.FieldName]; ok {
			return fmt.Errorf("schema: duplicate field name %q at %d and %d", f.FieldName, j, i)
		}
		seen[f.FieldName] = i
	}
	return nil
}

// Humanize derives a display name from a machine field name, e.g.
// "first_name" → "First Name". Providers use it when the backing system has
// no separate display name.
func Humanize(fieldName string) string {
	s := strings.Join(strings.FieldsFunc(fieldName, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	}), " ")
	return cases.Title(language.Und).String(s)
}

// UserFields drops system columns (field names starting with ':'), which the
// dataset service reports but a CSV never supplies.
func UserFields(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f.FieldName, ":") {
			continue
		}
		out = append(out, f)
	}
	return out
}
