// Package natsort orders page identifiers the way a person would: digit runs
// compare by numeric value, so "page_2" sorts before "page_10".
package natsort

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Segment is one run of a sort key. Numeric segments hold their digits with
// leading zeros stripped so values of any length compare without overflow.
type Segment struct {
	Numeric bool
	Text    string
}

// Key splits s into alternating digit and non-digit runs. Text runs are
// lower-cased.
func Key(s string) []Segment {
	var segments []Segment
	for len(s) > 0 {
		r, _ := utf8.DecodeRuneInString(s)
		digit := isDigit(r)
		end := strings.IndexFunc(s, func(r rune) bool { return isDigit(r) != digit })
		if end < 0 {
			end = len(s)
		}

		run := s[:end]
		s = s[end:]
		if digit {
			trimmed := strings.TrimLeft(run, "0")
			if trimmed == "" {
				trimmed = "0"
			}
			segments = append(segments, Segment{Numeric: true, Text: trimmed})
		} else {
			segments = append(segments, Segment{Text: strings.ToLower(run)})
		}
	}
	return segments
}

// ASCII digits only; other Unicode decimal digits stay part of text runs
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func compareSegment(a, b Segment) int {
	switch {
	case a.Numeric && b.Numeric:
		if len(a.Text) != len(b.Text) {
			if len(a.Text) < len(b.Text) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Text, b.Text)
	case a.Numeric != b.Numeric:
		// text before numbers
		if a.Numeric {
			return 1
		}
		return -1
	default:
		return strings.Compare(a.Text, b.Text)
	}
}

// Compare returns -1, 0 or 1. Identifiers with equal keys ("p01" and "p1")
// are ordered by their raw strings so the order is total.
func Compare(a, b string) int {
	ka, kb := Key(a), Key(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := compareSegment(ka[i], kb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ka) < len(kb):
		return -1
	case len(ka) > len(kb):
		return 1
	}
	return strings.Compare(a, b)
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Sort sorts ids in place in natural order.
func Sort(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return Less(ids[i], ids[j]) })
}

// SortFunc sorts items in place by the natural order of their identifiers.
func SortFunc[T any](items []T, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool { return Less(id(items[i]), id(items[j])) })
}
