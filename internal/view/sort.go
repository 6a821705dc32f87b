package view

import (
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var severityPriority = map[string]int{
	"critical": 1,
	"high":     2,
	"medium":   3,
	"low":      4,
}

// SeverityPriority ranks severity, most urgent first. Unknown or absent severity ranks last.
func SeverityPriority(severity string) int {
	if p, ok := severityPriority[strings.ToLower(strings.TrimSpace(severity))]; ok {
		return p
	}
	return 5
}

// BySeverity orders most urgent first.
func BySeverity[T any](severity func(T) string) Less[T] {
	return func(a, b Record[T]) bool {
		return SeverityPriority(severity(a.Value)) < SeverityPriority(severity(b.Value))
	}
}

// Newest orders by timestamp descending.
func Newest[T any](ts func(T) int64) Less[T] {
	return func(a, b Record[T]) bool {
		return ts(a.Value) > ts(b.Value)
	}
}

// Oldest orders by timestamp ascending.
func Oldest[T any](ts func(T) int64) Less[T] {
	return func(a, b Record[T]) bool {
		return ts(a.Value) < ts(b.Value)
	}
}

// ByName orders by localized name comparison ignoring case and diacritics.
func ByName[T any](name func(T) string) Less[T] {
	var mu sync.Mutex
	collator := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)

	return func(a, b Record[T]) bool {
		mu.Lock()
		defer mu.Unlock()
		return collator.CompareString(name(a.Value), name(b.Value)) < 0
	}
}

// Ascending orders by a numeric key ascending.
func Ascending[T any](key func(T) float64) Less[T] {
	return func(a, b Record[T]) bool {
		return key(a.Value) < key(b.Value)
	}
}

// Sort picks a timestamp or name ordering by its name: "newest" (default), "oldest" or "name".
func Sort[T any](order string, ts func(T) int64, name func(T) string) Less[T] {
	switch strings.ToLower(order) {
	case "oldest":
		return Oldest(ts)
	case "name":
		return ByName(name)
	default:
		return Newest(ts)
	}
}
