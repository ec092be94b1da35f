package metadata

import (
	"strings"
)

// Operator is a comparison operator for metadata filtering.
type Operator string

const (
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "ne"
	OpGreaterThan  Operator = "gt"
	OpGreaterEqual Operator = "gte"
	OpLessThan     Operator = "lt"
	OpLessEqual    Operator = "lte"
	// OpIn matches when the field equals any element of an array value.
	OpIn Operator = "in"
	// OpContains matches a substring of a string field.
	OpContains Operator = "contains"
)

// Filter is a single field condition.
type Filter struct {
	Key      string
	Operator Operator
	Value    Value
}

// FilterSet is a conjunction: every filter must match.
type FilterSet struct {
	Filters []Filter
}

// NewFilterSet creates a filter set from the given conditions.
func NewFilterSet(filters ...Filter) *FilterSet {
	return &FilterSet{Filters: filters}
}

// Matches reports whether the document satisfies the condition. A Null
// or absent field never matches, not even under OpNotEqual: missing
// data is excluded rather than treated as zero.
func (f *Filter) Matches(doc Document) bool {
	v, ok := doc[f.Key]
	if !ok {
		return false
	}
	return f.matchValue(v)
}

// MatchesRow reports whether row i of the table satisfies the
// condition.
func (f *Filter) MatchesRow(t *Table, i int) bool {
	return f.matchValue(t.Get(i, f.Key))
}

func (f *Filter) matchValue(v Value) bool {
	if v.IsNull() {
		return false
	}
	switch f.Operator {
	case OpEqual:
		return v.equalTo(f.Value)
	case OpNotEqual:
		return !v.equalTo(f.Value)
	case OpGreaterThan:
		return v.greaterThan(f.Value)
	case OpGreaterEqual:
		return v.greaterThan(f.Value) || v.equalTo(f.Value)
	case OpLessThan:
		return f.Value.greaterThan(v)
	case OpLessEqual:
		return f.Value.greaterThan(v) || v.equalTo(f.Value)
	case OpIn:
		return v.oneOf(f.Value)
	case OpContains:
		return v.containsSubstring(f.Value)
	default:
		return false
	}
}

// Matches reports whether the document satisfies every condition.
func (fs *FilterSet) Matches(doc Document) bool {
	for i := range fs.Filters {
		if !fs.Filters[i].Matches(doc) {
			return false
		}
	}
	return true
}

// MatchesRow reports whether row i of the table satisfies every
// condition.
func (fs *FilterSet) MatchesRow(t *Table, i int) bool {
	for i2 := range fs.Filters {
		if !fs.Filters[i2].MatchesRow(t, i) {
			return false
		}
	}
	return true
}

// equalTo compares across numeric kinds, so Int(2) equals Float(2.0).
// A pure int pair compares exactly, without the float round trip.
func (v Value) equalTo(o Value) bool {
	if v.Kind == KindNull || o.Kind == KindNull {
		return v.Kind == o.Kind
	}

	av, aok := v.AsFloat64()
	bv, bok := o.AsFloat64()
	if aok && bok {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.I64 == o.I64
		}
		return av == bv
	}

	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.B == o.B
	case KindArray:
		if len(v.A) != len(o.A) {
			return false
		}
		for i := range v.A {
			if !v.A[i].equalTo(o.A[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// greaterThan orders numeric values only; other kinds are unordered.
func (v Value) greaterThan(o Value) bool {
	av, aok := v.AsFloat64()
	bv, bok := o.AsFloat64()
	return aok && bok && av > bv
}

func (v Value) oneOf(set Value) bool {
	if set.Kind != KindArray {
		return false
	}
	for _, item := range set.A {
		if v.equalTo(item) {
			return true
		}
	}
	return false
}

func (v Value) containsSubstring(needle Value) bool {
	if v.Kind != KindString || needle.Kind != KindString {
		return false
	}
	return strings.Contains(v.s.Value(), needle.s.Value())
}
