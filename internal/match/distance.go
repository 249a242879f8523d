// Package match proposes a mapping from CSV columns to the fields of a known
// dataset schema.
//
// It has two layers:
//
//   - A distance model: two weighted edit distances that compare a CSV header
//     against a field's human-readable name and against its machine field
//     name. Each distance has a rejection threshold that turns "too
//     different" into +Inf rather than a finite but meaningless score.
//   - A matcher: a deterministic greedy assignment that binds each CSV
//     position to at most one field, each field to at most one position, and
//     marks everything else ignored.
//
// The package is pure computation. It does not log, block, or keep state
// between calls, so repeated runs over the same input return identical
// results.
package match

import (
	"math"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Inf is the badness of a pairing that must never be chosen.
var Inf = math.Inf(1)

// rejectFraction is the share of a reference length that a distance must stay
// under for a pairing to be considered at all.
const rejectFraction = 0.25

// Costs is a set of per-character edit costs for a weighted Levenshtein
// distance from a source string to a target string. Substitute is only
// consulted for differing runes; equal runes are free.
type Costs struct {
	Insert     func(r rune) float64
	Delete     func(r rune) float64
	Substitute func(from, to rune) float64
}

// Distance returns the minimum total cost of turning src into dst.
func (c Costs) Distance(src, dst string) float64 {
	if src == dst {
		return 0
	}
	s := []rune(src)
	d := []rune(dst)

	prev := make([]float64, len(d)+1)
	curr := make([]float64, len(d)+1)
	for j := 1; j <= len(d); j++ {
		prev[j] = prev[j-1] + c.Insert(d[j-1])
	}

	for i := 1; i <= len(s); i++ {
		del := c.Delete(s[i-1])
		curr[0] = prev[0] + del
		for j := 1; j <= len(d); j++ {
			sub := 0.0
			if s[i-1] != d[j-1] {
				sub = c.Substitute(s[i-1], d[j-1])
			}
			curr[j] = math.Min(
				curr[j-1]+c.Insert(d[j-1]),
				math.Min(prev[j]+del, prev[j-1]+sub),
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(d)]
}

func unit(rune) float64 { return 1 }
func free(rune) float64 { return 0 }

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// headerToField is the forward cost model from a CSV header to a field name.
// Punctuation becoming '_' and an uppercase letter becoming its own lowercase
// form are cheap but not free, so fewer expected edits still win.
var headerToField = Costs{
	Insert: unit,
	Delete: unit,
	Substitute: func(from, to rune) float64 {
		if !isAlnum(from) && to == '_' {
			return 0.1
		}
		if unicode.IsUpper(from) && unicode.ToLower(from) == to {
			return 0.1
		}
		return 1
	},
}

// fieldToHeader is the reverse guard model from a field name back to a CSV
// header. Insertions are free and deletions are not, so the distance measures
// how much of the field name is missing from the header. An '_' standing in
// for any separator in the header costs nothing.
var fieldToHeader = Costs{
	Insert: free,
	Delete: unit,
	Substitute: func(from, to rune) float64 {
		if from == '_' && !isAlnum(to) {
			return 0
		}
		return 1
	},
}

// plain is unweighted Levenshtein.
var plain = Costs{
	Insert:     unit,
	Delete:     unit,
	Substitute: func(rune, rune) float64 { return 1 },
}

// HeaderToFieldName scores a CSV header against a machine field name.
//
// The score is the forward weighted distance, unless the reverse distance
// (field name to header) is not under a quarter of the field name's length.
// In that case the field name cannot be rebuilt from the header by
// deletions alone, and the pair is rejected with +Inf. This keeps an
// early spurious column from absorbing an unrelated field just because
// nothing closer has been seen.
func HeaderToFieldName(header, fieldName string) float64 {
	header, fieldName = norm.NFC.String(header), norm.NFC.String(fieldName)
	limit := float64(utf8.RuneCountInString(fieldName)) * rejectFraction
	if fieldToHeader.Distance(fieldName, header) >= limit {
		return Inf
	}
	return headerToField.Distance(header, fieldName)
}

// HeaderToHumanName scores a CSV header against a human-readable field name
// using plain edit distance. Distances of a quarter of the longer string or
// more are rejected with +Inf.
func HeaderToHumanName(header, humanName string) float64 {
	header, humanName = norm.NFC.String(header), norm.NFC.String(humanName)
	d := plain.Distance(header, humanName)
	n := max(utf8.RuneCountInString(header), utf8.RuneCountInString(humanName))
	if d >= float64(n)*rejectFraction {
		return Inf
	}
	return d
}

// Badness is the score the matcher ranks on: the better of the human-name
// and field-name distances.
func Badness(header, humanName, fieldName string) float64 {
	return math.Min(
		HeaderToHumanName(header, humanName),
		HeaderToFieldName(header, fieldName),
	)
}
