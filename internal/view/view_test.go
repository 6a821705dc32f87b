package view

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

type pet struct {
	Name        string
	Breed       string
	Description string
	Severity    string
	Status      string
	CreatedAt   int64
}

func petFields(p pet) []string {
	return []string{p.Name, p.Breed, p.Description}
}

func ids(res Result[pet]) []string {
	out := make([]string, 0, len(res.Items))
	for _, r := range res.Items {
		out = append(out, r.ID)
	}
	return out
}

func TestSearchCalmDog(t *testing.T) {
	records := []Record[pet]{
		{ID: "a", Value: pet{Name: "Bruno", Breed: "Aspin", Description: "A calm DOG who loves naps"}},
		{ID: "b", Value: pet{Name: "Calmy", Breed: "Dogue de Bordeaux", Description: "big"}},
		{ID: "c", Value: pet{Name: "Mittens", Breed: "Puspin", Description: "calm cat"}},
		{ID: "d", Value: pet{Name: "Rex", Breed: "Labrador", Description: "energetic dog"}},
	}

	res := Evaluate(records, Query[pet]{Predicates: []Predicate[pet]{Search("calm dog", petFields)}})

	if diff := cmp.Diff([]string{"a", "b"}, ids(res)); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%v", diff)
	}
}

func TestSeveritySort(t *testing.T) {
	records := []Record[pet]{
		{ID: "low", Value: pet{Severity: "low"}},
		{ID: "critical", Value: pet{Severity: "critical"}},
		{ID: "unknown", Value: pet{Severity: ""}},
		{ID: "high", Value: pet{Severity: "HIGH"}},
	}

	res := Evaluate(records, Query[pet]{Less: BySeverity(func(p pet) string { return p.Severity })})

	assert.Equal(t, []string{"critical", "high", "low", "unknown"}, ids(res))
}

func TestSortIsStable(t *testing.T) {
	records := []Record[pet]{
		{ID: "1", Value: pet{Severity: "high"}},
		{ID: "2", Value: pet{Severity: "low"}},
		{ID: "3", Value: pet{Severity: "high"}},
		{ID: "4", Value: pet{Severity: "bogus"}},
		{ID: "5", Value: pet{Severity: "high"}},
	}

	res := Evaluate(records, Query[pet]{Less: BySeverity(func(p pet) string { return p.Severity })})

	assert.Equal(t, []string{"1", "3", "5", "2", "4"}, ids(res))
}

func TestPredicatesAreAnded(t *testing.T) {
	records := []Record[pet]{
		{ID: "1", Value: pet{Status: "pending", Severity: "high", Name: "flood"}},
		{ID: "2", Value: pet{Status: "ACCEPTED", Severity: "high", Name: "flood"}},
		{ID: "3", Value: pet{Status: "accepted", Severity: "low", Name: "flood"}},
		{ID: "4", Value: pet{Status: "accepted", Severity: "high", Name: "fire"}},
	}

	q := Query[pet]{}.
		Where(Equal("accepted", func(p pet) string { return p.Status })).
		Where(Equal("high", func(p pet) string { return p.Severity })).
		Where(Search("FLOOD", petFields))

	assert.Equal(t, []string{"2"}, ids(Evaluate(records, q)))
}

func TestInactiveFilters(t *testing.T) {
	records := []Record[pet]{{ID: "1"}, {ID: "2"}}

	q := Query[pet]{}.
		Where(Equal("all", func(p pet) string { return p.Status })).
		Where(Equal("", func(p pet) string { return p.Status })).
		Where(Search("   ", petFields)).
		Where(Exact("", func(p pet) string { return p.Name }))

	assert.Equal(t, []string{"1", "2"}, ids(Evaluate(records, q)))
}

func TestPlaceholders(t *testing.T) {
	placeholders := Placeholders{Empty: "No reports available.", NoMatch: "No reports found for the selected status."}
	q := Query[pet]{Placeholders: placeholders}.Where(Equal("completed", func(p pet) string { return p.Status }))

	empty := Evaluate(nil, q)
	assert.Equal(t, "No reports available.", empty.Placeholder)
	assert.Equal(t, 0, empty.Total)

	noMatch := Evaluate([]Record[pet]{{ID: "1", Value: pet{Status: "pending"}}}, q)
	assert.Equal(t, "No reports found for the selected status.", noMatch.Placeholder)
	assert.Equal(t, 1, noMatch.Total)

	match := Evaluate([]Record[pet]{{ID: "1", Value: pet{Status: "completed"}}}, q)
	assert.Equal(t, "", match.Placeholder)
}

func TestTimestampAndNameSort(t *testing.T) {
	records := []Record[pet]{
		{ID: "b", Value: pet{Name: "bella", CreatedAt: 20}},
		{ID: "a", Value: pet{Name: "Álvaro", CreatedAt: 30}},
		{ID: "c", Value: pet{Name: "Charlie", CreatedAt: 10}},
	}
	ts := func(p pet) int64 { return p.CreatedAt }
	name := func(p pet) string { return p.Name }

	assert.Equal(t, []string{"a", "b", "c"}, ids(Evaluate(records, Query[pet]{Less: Sort("newest", ts, name)})))
	assert.Equal(t, []string{"c", "b", "a"}, ids(Evaluate(records, Query[pet]{Less: Sort("oldest", ts, name)})))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Evaluate(records, Query[pet]{Less: Sort("name", ts, name)})))
}

func TestRender(t *testing.T) {
	res := Evaluate([]Record[pet]{{ID: "x", Value: pet{Name: "Rex"}}}, Query[pet]{})

	page := Render(res, func(r Record[pet]) string { return r.ID + ":" + r.Value.Name })

	assert.Equal(t, Page[string]{Items: []string{"x:Rex"}, Total: 1, Matched: 1}, page)
}

func TestSearchProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every match contains every token", prop.ForAll(
		func(names []string, query string) bool {
			records := make([]Record[pet], 0, len(names))
			for i, n := range names {
				records = append(records, Record[pet]{ID: string(rune('a' + i%26)), Value: pet{Name: n}})
			}
			res := Evaluate(records, Query[pet]{Predicates: []Predicate[pet]{Search(query, petFields)}})

			for _, r := range res.Items {
				for _, token := range Tokens(query) {
					if !strings.Contains(strings.ToLower(strings.Join(petFields(r.Value), " ")), token) {
						return false
					}
				}
			}
			return len(res.Items) <= len(records)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.Property("severity sort never puts less urgent first", prop.ForAll(
		func(severities []string) bool {
			records := make([]Record[pet], 0, len(severities))
			for _, s := range severities {
				records = append(records, Record[pet]{Value: pet{Severity: s}})
			}
			res := Evaluate(records, Query[pet]{Less: BySeverity(func(p pet) string { return p.Severity })})

			for i := 1; i < len(res.Items); i++ {
				if SeverityPriority(res.Items[i-1].Value.Severity) > SeverityPriority(res.Items[i].Value.Severity) {
					return false
				}
			}
			return len(res.Items) == len(records)
		},
		gen.SliceOf(gen.IntRange(0, 5).Map(func(i int) string {
			return []string{"critical", "high", "medium", "low", "", "other"}[i]
		})),
	))

	properties.TestingRun(t)
}
