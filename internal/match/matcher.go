package match

import (
	"container/heap"
	"math"
	"sort"

	"datasync/internal/schema"
)

// Candidate is one scored (position, field) pairing from a matching run.
type Candidate struct {
	Position  int
	FieldName string
	Badness   float64

	// order is the field's index in the schema; it breaks badness ties.
	order int
}

// Assignment is the outcome for a single CSV position. FieldName is empty
// when the position is ignored.
type Assignment struct {
	Position  int
	FieldName string
	Badness   float64
}

// Ignored reports whether no field was assigned.
func (a Assignment) Ignored() bool { return a.FieldName == "" }

// Result is the full outcome of a matching run.
type Result struct {
	// Assignments has one entry per input position, indexed by position.
	Assignments []Assignment

	// preferences keeps every position's full ranked candidate list so that
	// callers can inspect why a column was or was not matched.
	preferences [][]Candidate
}

// Bound returns the assignments that received a field, in position order.
func (r Result) Bound() []Assignment {
	var out []Assignment
	for _, a := range r.Assignments {
		if !a.Ignored() {
			out = append(out, a)
		}
	}
	return out
}

// Candidates returns the ranked candidates computed for position, best first.
// A position that ended up ignored with only +Inf candidates had no viable
// match.
func (r Result) Candidates(position int) []Candidate {
	if position < 0 || position >= len(r.preferences) {
		return nil
	}
	out := make([]Candidate, len(r.preferences[position]))
	copy(out, r.preferences[position])
	return out
}

// BestBadness returns the lowest badness seen for position, or +Inf.
func (r Result) BestBadness(position int) float64 {
	if position < 0 || position >= len(r.preferences) || len(r.preferences[position]) == 0 {
		return Inf
	}
	return r.preferences[position][0].Badness
}

// pending is a position still waiting for a decision, with its remaining
// preferences (best first) and a cursor to the current best.
type pending struct {
	position int
	prefs    []Candidate
	next     int
}

func (p *pending) current() (Candidate, bool) {
	if p.next >= len(p.prefs) {
		return Candidate{}, false
	}
	return p.prefs[p.next], true
}

// hopeless reports whether p has nothing left but rejected pairings.
func (p *pending) hopeless() bool {
	c, ok := p.current()
	return !ok || math.IsInf(c.Badness, 1)
}

// pool orders pending positions by their current best badness, then by
// position. Hopeless positions sort after all others, by position.
type pool []*pending

func (q pool) Len() int { return len(q) }
func (q pool) Less(i, j int) bool {
	a, b := q[i], q[j]
	ah, bh := a.hopeless(), b.hopeless()
	switch {
	case ah && bh:
		return a.position < b.position
	case ah:
		return false
	case bh:
		return true
	}
	ab, _ := a.current()
	bb, _ := b.current()
	if ab.Badness != bb.Badness {
		return ab.Badness < bb.Badness
	}
	return a.position < b.position
}
func (q pool) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pool) Push(x any)   { *q = append(*q, x.(*pending)) }
func (q *pool) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}

// Match assigns CSV headers (by position) to fields.
//
// Every position gets a ranked preference list over all fields, ordered by
// badness and then by the field's schema order. Positions are then taken
// best-first (lowest current badness, leftmost on ties). A position whose
// best remaining field is unclaimed gets it; one whose best is already
// claimed drops that single preference and goes back into the pool; one with
// nothing but +Inf left is ignored.
//
// This is greedy: once a field is claimed it is never reassigned, even if a
// later position would have been a closer partner.
func Match(headers []string, fields []schema.Field) Result {
	res := Result{
		Assignments: make([]Assignment, len(headers)),
		preferences: make([][]Candidate, len(headers)),
	}

	q := make(pool, 0, len(headers))
	for pos, h := range headers {
		prefs := make([]Candidate, len(fields))
		for i, f := range fields {
			prefs[i] = Candidate{
				Position:  pos,
				FieldName: f.FieldName,
				Badness:   Badness(h, f.HumanName, f.FieldName),
				order:     i,
			}
		}
		sort.SliceStable(prefs, func(i, j int) bool {
			if prefs[i].Badness != prefs[j].Badness {
				return prefs[i].Badness < prefs[j].Badness
			}
			return prefs[i].order < prefs[j].order
		})
		res.preferences[pos] = prefs
		res.Assignments[pos] = Assignment{Position: pos, Badness: Inf}
		q = append(q, &pending{position: pos, prefs: prefs})
	}
	heap.Init(&q)

	claimed := make(map[string]struct{}, len(fields))
	for q.Len() > 0 {
		p := heap.Pop(&q).(*pending)
		if p.hopeless() {
			continue
		}
		c, _ := p.current()
		if _, taken := claimed[c.FieldName]; taken {
			p.next++
			heap.Push(&q, p)
			continue
		}
		claimed[c.FieldName] = struct{}{}
		res.Assignments[p.position] = Assignment{
			Position:  p.position,
			FieldName: c.FieldName,
			Badness:   c.Badness,
		}
	}
	return res
}
