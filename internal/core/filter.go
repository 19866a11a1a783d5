package core

import (
	"sort"
	"strings"
	"time"
)

// Query is a conjunctive predicate set over entries. Zero-valued fields are
// inactive. Day, From and To compare whole calendar days; Month/Year select a
// calendar month; Search matches the entry name, the resolved category name
// or the amount rendered as a decimal string, case-insensitively.
type Query struct {
	Day       *time.Time
	From      *time.Time
	To        *time.Time
	Month     time.Month
	Year      int
	MinAmount Money
	Search    string
}

// FilterEntries returns the entries matching every active predicate, sorted
// by date descending. The sort is stable so equal dates keep their relative
// store order. Inputs are never mutated; the result is a fresh slice
// recomputed per call.
func FilterEntries(entries []Entry, categories []CategoryInfo, q Query) []Entry {
	catNames := make(map[string]string, len(categories))
	for _, c := range categories {
		catNames[c.ID] = strings.ToLower(c.Name)
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if q.Day != nil && !sameCalendarDay(e.Date, *q.Day) {
			continue
		}
		if q.From != nil && dayKey(e.Date) < dayKey(*q.From) {
			continue
		}
		if q.To != nil && dayKey(e.Date) > dayKey(*q.To) {
			continue
		}
		if q.Month != 0 && (e.Date.Month() != q.Month || e.Date.Year() != q.Year) {
			continue
		}
		if q.MinAmount.Cents > 0 && e.Amount.Cents < q.MinAmount.Cents {
			continue
		}
		if search != "" && !matchesSearch(e, catNames[e.CategoryID], search) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func matchesSearch(e Entry, categoryName, search string) bool {
	if strings.Contains(strings.ToLower(e.Name), search) {
		return true
	}
	if categoryName != "" && strings.Contains(categoryName, search) {
		return true
	}
	return strings.Contains(e.Amount.String(), search)
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// DayGroup is a display grouping of entries sharing a calendar day.
type DayGroup struct {
	Label   string  `json:"label"`
	Entries []Entry `json:"entries"`
}

// GroupByDay buckets already-sorted entries by calendar day, preserving the
// input order both across and within groups.
func GroupByDay(entries []Entry) []DayGroup {
	var groups []DayGroup
	index := make(map[string]int)
	for _, e := range entries {
		label := e.Date.Format("2 Jan 2006")
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DayGroup{Label: label})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}
