package tabular

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Options controls how CSV bytes are decoded into a Table.
type Options struct {
	// Separator is the field delimiter (',' for CSV, '\t' for TSV).
	Separator rune
	// Quote is the quote character. Only '"' is supported by the reader; it
	// is kept so control files that spell it out round-trip.
	Quote rune
	// Encoding is a WHATWG/IANA label ("utf-8", "windows-1250",
	// "iso-8859-2"...). Empty means UTF-8.
	Encoding string
	// HasHeaderRow makes the first record the header row.
	HasHeaderRow bool
	// Skip drops this many records after the header (or from the start when
	// there is no header).
	Skip int
	// TrimSpace trims leading and trailing white space from every cell.
	TrimSpace bool
	// SampleRows caps the number of data rows kept. 0 keeps every row.
	SampleRows int
}

// DefaultOptions matches a plain UTF-8 CSV with a header row.
func DefaultOptions() Options {
	return Options{
		Separator:    ',',
		Quote:        '"',
		Encoding:     "utf-8",
		HasHeaderRow: true,
		TrimSpace:    true,
	}
}

// ErrUnsupportedQuote is returned for quote characters other than '"'.
var ErrUnsupportedQuote = errors.New("tabular: only '\"' is supported as a quote character")

// Validate rejects options the reader cannot honour.
func (o Options) Validate() error {
	switch {
	case o.Separator == 0:
		return errors.New("tabular: separator must be set")
	case o.Separator == '"' || o.Separator == '\r' || o.Separator == '\n' ||
		o.Separator == utf8.RuneError || !utf8.ValidRune(o.Separator):
		return fmt.Errorf("tabular: invalid separator %q", o.Separator)
	case o.Quote != 0 && o.Quote != '"':
		return fmt.Errorf("%w (got %q)", ErrUnsupportedQuote, o.Quote)
	case o.Skip < 0:
		return fmt.Errorf("tabular: skip must be >= 0 (got %d)", o.Skip)
	case o.SampleRows < 0:
		return fmt.Errorf("tabular: sample rows must be >= 0 (got %d)", o.SampleRows)
	}
	_, err := LookupEncoding(o.Encoding)
	return err
}

// LookupEncoding resolves an encoding label. Empty and UTF-8 labels resolve
// to UTF-8.
func LookupEncoding(label string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("tabular: unknown encoding %q: %w", label, err)
	}
	return enc, nil
}
