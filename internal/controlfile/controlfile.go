// Package controlfile reads and writes the JSON control file that tells the
// importer how to interpret a CSV: file options (separator, encoding, header
// row...) and the column mapping itself.
//
// Example (trimmed):
//
//	{
//	  "action": "Replace",
//	  "csv": {
//	    "hasHeaderRow": true,
//	    "skip": 1,
//	    "columns": ["first_name", "col_1", "zip_code"],
//	    "ignoreColumns": ["col_1"],
//	    "separator": ",",
//	    "encoding": "utf-8"
//	  }
//	}
package controlfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"datasync/internal/tabular"
)

// Kind is the file type section a control file uses.
type Kind string

const (
	KindCSV Kind = "csv"
	KindTSV Kind = "tsv"
)

// Action values.
const (
	ActionReplace = "Replace"
	ActionUpsert  = "Upsert"
	ActionAppend  = "Append"
	ActionDelete  = "Delete"
)

var validActions = map[string]bool{
	ActionReplace: true, ActionUpsert: true, ActionAppend: true, ActionDelete: true,
}

// ErrNoFileType is returned when neither "csv" nor "tsv" is present.
var ErrNoFileType = errors.New("controlfile: no csv or tsv section")

// ControlFile is the top-level document.
type ControlFile struct {
	Action string           `json:"action"`
	CSV    *FileTypeControl `json:"csv,omitempty"`
	TSV    *FileTypeControl `json:"tsv,omitempty"`
}

// SyntheticColumn names the source columns of a derived location or point.
type SyntheticColumn struct {
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
}

// FileTypeControl is the body of the "csv"/"tsv" section.
type FileTypeControl struct {
	Columns       []string `json:"columns"`
	IgnoreColumns []string `json:"ignoreColumns"`

	HasHeaderRow bool   `json:"hasHeaderRow"`
	Skip         int    `json:"skip"`
	Separator    string `json:"separator"`
	Quote        string `json:"quote"`
	Escape       string `json:"escape,omitempty"`
	Encoding     string `json:"encoding"`

	EmptyTextIsNull         bool     `json:"emptyTextIsNull"`
	TrimWhitespace          bool     `json:"trimWhitespace"`
	TrimServerWhitespace    bool     `json:"trimServerWhitespace"`
	FloatingTimestampFormat []string `json:"floatingTimestampFormat"`
	FixedTimestampFormat    []string `json:"fixedTimestampFormat"`
	Timezone                string   `json:"timezone"`
	SetAsideErrors          bool     `json:"setAsideErrors"`
	UseSocrataGeocoding     bool     `json:"useSocrataGeocoding"`

	SyntheticLocations map[string]SyntheticColumn `json:"syntheticLocations,omitempty"`
	SyntheticPoints    map[string]SyntheticColumn `json:"syntheticPoints,omitempty"`
}

// New returns a control file with the importer's defaults for kind.
func New(kind Kind) *ControlFile {
	ftc := &FileTypeControl{
		IgnoreColumns:           []string{},
		HasHeaderRow:            true,
		Skip:                    1,
		Separator:               ",",
		Quote:                   `"`,
		Encoding:                "utf-8",
		EmptyTextIsNull:         true,
		TrimWhitespace:          true,
		TrimServerWhitespace:    true,
		FloatingTimestampFormat: []string{"ISO8601", "MM/dd/yy", "MM/dd/yyyy"},
		FixedTimestampFormat:    []string{"ISO8601", "MM/dd/yy", "MM/dd/yyyy"},
		Timezone:                "UTC",
		UseSocrataGeocoding:     true,
	}
	cf := &ControlFile{Action: ActionReplace}
	if kind == KindTSV {
		ftc.Separator = "\t"
		cf.TSV = ftc
	} else {
		cf.CSV = ftc
	}
	return cf
}

// Parse decodes a control file and normalises it: a header row implies at
// least one skipped row.
func Parse(data []byte) (*ControlFile, error) {
	var cf ControlFile
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("controlfile: decode: %w", err)
	}
	ftc := cf.FileType()
	if ftc == nil {
		return nil, ErrNoFileType
	}
	if cf.Action == "" {
		cf.Action = ActionReplace
	}
	if !validActions[cf.Action] {
		return nil, fmt.Errorf("controlfile: unknown action %q", cf.Action)
	}
	if ftc.HasHeaderRow && ftc.Skip < 1 {
		ftc.Skip = 1
	}
	if ftc.IgnoreColumns == nil {
		ftc.IgnoreColumns = []string{}
	}
	return &cf, nil
}

// Read loads and parses the control file at path.
func Read(path string) (*ControlFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controlfile: %w", err)
	}
	return Parse(data)
}

// Marshal renders the document as indented JSON.
func (c *ControlFile) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// Write stores the document at path.
func (c *ControlFile) Write(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("controlfile: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("controlfile: %w", err)
	}
	return nil
}

// Kind reports which section is in use.
func (c *ControlFile) Kind() Kind {
	if c.CSV == nil && c.TSV != nil {
		return KindTSV
	}
	return KindCSV
}

// FileType returns the populated section, preferring csv.
func (c *ControlFile) FileType() *FileTypeControl {
	if c.CSV != nil {
		return c.CSV
	}
	return c.TSV
}

// Clone returns a deep copy.
func (c *ControlFile) Clone() *ControlFile {
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("controlfile: clone: %v", err))
	}
	var out ControlFile
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("controlfile: clone: %v", err))
	}
	return &out
}

// HasColumns reports whether a mapping has been stored.
func (f *FileTypeControl) HasColumns() bool { return f.Columns != nil }

// SetHasHeaderRow toggles the header row, keeping skip in step with it.
func (f *FileTypeControl) SetHasHeaderRow(v bool) {
	switch {
	case v && !f.HasHeaderRow:
		f.Skip++
	case !v && f.HasHeaderRow && f.Skip > 0:
		f.Skip--
	}
	f.HasHeaderRow = v
}

// TableOptions translates the file options into reader options. The header
// row counts towards skip in the control file but not in tabular.Options.
func (f *FileTypeControl) TableOptions() (tabular.Options, error) {
	sep, err := parseChar("separator", f.Separator, ',')
	if err != nil {
		return tabular.Options{}, err
	}
	quote, err := parseChar("quote", f.Quote, '"')
	if err != nil {
		return tabular.Options{}, err
	}
	skip := f.Skip
	if f.HasHeaderRow && skip > 0 {
		skip--
	}
	opt := tabular.Options{
		Separator:    sep,
		Quote:        quote,
		Encoding:     f.Encoding,
		HasHeaderRow: f.HasHeaderRow,
		Skip:         skip,
		TrimSpace:    f.TrimWhitespace,
	}
	return opt, opt.Validate()
}

// parseChar accepts a single character or the escapes \t and "tab".
func parseChar(name, s string, def rune) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return def, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, fmt.Errorf("controlfile: %s must be a single character (got %q)", name, s)
	}
	return r, nil
}
