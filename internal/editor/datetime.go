package editor

import (
	"strings"
	"time"
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// canParseDateTime reports whether v parses with any of formats. Formats
// are the control file's date patterns ("ISO8601", "MM/dd/yyyy", ...).
func canParseDateTime(v string, formats []string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	for _, f := range formats {
		if strings.HasPrefix(strings.ToUpper(f), "ISO") {
			for _, layout := range isoLayouts {
				if _, err := time.Parse(layout, v); err == nil {
					return true
				}
			}
			continue
		}
		if _, err := time.Parse(goLayout(f), v); err == nil {
			return true
		}
	}
	return false
}

// patternTokens maps date pattern letters onto Go layout elements, longest
// first. Numeric fields use the unpadded Go forms, which also accept two
// digits when parsing.
var patternTokens = []struct{ from, to string }{
	{"yyyy", "2006"}, {"yy", "06"},
	{"MMMM", "January"}, {"MMM", "Jan"}, {"MM", "1"}, {"M", "1"},
	{"dd", "2"}, {"d", "2"},
	{"EEEE", "Monday"}, {"EEE", "Mon"},
	{"HH", "15"}, {"H", "15"},
	{"hh", "3"}, {"h", "3"},
	{"mm", "4"}, {"m", "4"},
	{"ss", "5"}, {"s", "5"},
	{"SSS", "000"},
	{"a", "PM"},
	{"ZZ", "-07:00"}, {"Z", "-0700"},
}

// goLayout translates a date pattern into a time.Parse layout. Text in
// single quotes is copied literally.
func goLayout(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, tok := range patternTokens {
			if strings.HasPrefix(pattern[i:], tok.from) {
				b.WriteString(tok.to)
				i += len(tok.from)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}
