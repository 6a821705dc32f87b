package view

import (
	"strings"
)

// Tokens splits a free-text query into lower-case whitespace separated tokens.
func Tokens(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// MatchTokens reports whether every token is a substring of the concatenated fields, ignoring case.
func MatchTokens(tokens []string, fields ...string) bool {
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, t := range tokens {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}

// Search matches query tokens against searchable fields of the record. Blank query is inactive.
func Search[T any](query string, fields func(T) []string) Predicate[T] {
	tokens := Tokens(query)
	if len(tokens) == 0 {
		return nil
	}
	return func(r Record[T]) bool {
		return MatchTokens(tokens, fields(r.Value)...)
	}
}

// Equal matches records whose field equals want, ignoring case and surrounding space.
// Empty want and "all" are inactive.
func Equal[T any](want string, field func(T) string) Predicate[T] {
	want = strings.TrimSpace(want)
	if want == "" || strings.EqualFold(want, "all") {
		return nil
	}
	return func(r Record[T]) bool {
		return strings.EqualFold(strings.TrimSpace(field(r.Value)), want)
	}
}

// Exact matches records whose field is exactly want. Empty want is inactive.
func Exact[T any](want string, field func(T) string) Predicate[T] {
	if want == "" {
		return nil
	}
	return func(r Record[T]) bool {
		return field(r.Value) == want
	}
}

// Func adapts a plain function over values.
func Func[T any](f func(T) bool) Predicate[T] {
	return func(r Record[T]) bool {
		return f(r.Value)
	}
}
