// Package view evaluates filtered, sorted views over a remote collection and keeps them in sync with it.
package view

import (
	"sort"
)

// Record is one keyed child of a collection.
type Record[T any] struct {
	ID    string
	Value T
}

// Predicate selects records. A nil predicate is an inactive filter.
type Predicate[T any] func(Record[T]) bool

// Less orders records. Equal records keep their emission order.
type Less[T any] func(a, b Record[T]) bool

// Placeholders are shown instead of an empty list.
type Placeholders struct {
	// Empty is used when the collection itself has no records.
	Empty string
	// NoMatch is used when records exist but none passes the filters.
	NoMatch string
}

// Query is the local filter state of a view.
type Query[T any] struct {
	Predicates   []Predicate[T]
	Less         Less[T]
	Placeholders Placeholders
}

// Where returns copy of the query with p AND-ed to its predicates.
func (q Query[T]) Where(p Predicate[T]) Query[T] {
	predicates := make([]Predicate[T], 0, len(q.Predicates)+1)
	predicates = append(predicates, q.Predicates...)
	q.Predicates = append(predicates, p)
	return q
}

// SortBy returns copy of the query ordered by less.
func (q Query[T]) SortBy(less Less[T]) Query[T] {
	q.Less = less
	return q
}

// Result of evaluating a query over one snapshot.
type Result[T any] struct {
	Items       []Record[T]
	Total       int
	Placeholder string
}

// Evaluate filters records by all predicates and stable-sorts the matches. records is not modified.
func Evaluate[T any](records []Record[T], q Query[T]) Result[T] {
	items := make([]Record[T], 0, len(records))

	for _, r := range records {
		if matches(r, q.Predicates) {
			items = append(items, r)
		}
	}

	if q.Less != nil {
		sort.SliceStable(items, func(i, j int) bool {
			return q.Less(items[i], items[j])
		})
	}

	result := Result[T]{Items: items, Total: len(records)}
	if len(items) == 0 {
		if len(records) == 0 {
			result.Placeholder = q.Placeholders.Empty
		} else {
			result.Placeholder = q.Placeholders.NoMatch
		}
	}
	return result
}

func matches[T any](r Record[T], predicates []Predicate[T]) bool {
	for _, p := range predicates {
		if p != nil && !p(r) {
			return false
		}
	}
	return true
}

// Page is a rendered result: view models instead of records.
type Page[R any] struct {
	Items       []R    `json:"items"`
	Total       int    `json:"total"`
	Matched     int    `json:"matched"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Render maps matched records to view models.
func Render[T, R any](res Result[T], f func(Record[T]) R) Page[R] {
	items := make([]R, 0, len(res.Items))
	for _, r := range res.Items {
		items = append(items, f(r))
	}
	return Page[R]{Items: items, Total: res.Total, Matched: len(res.Items), Placeholder: res.Placeholder}
}
