package core

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

// MatchesQuery reports whether q occurs in any of fields, ignoring case and
// Unicode composition. An empty query matches everything.
func MatchesQuery(q string, fields ...string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return true
	}
	// A Caser keeps state, so each call gets its own.
	fold := cases.Fold()
	needle := fold.String(norm.NFC.String(q))
	for _, f := range fields {
		if strings.Contains(fold.String(norm.NFC.String(f)), needle) {
			return true
		}
	}
	return false
}

func filterEntities(list []indicator.Entity, q string) []indicator.Entity {
	if strings.TrimSpace(q) == "" {
		return append([]indicator.Entity(nil), list...)
	}
	var out []indicator.Entity
	for _, e := range list {
		if MatchesQuery(q, e.Code, e.Label) {
			out = append(out, e)
		}
	}
	return out
}

func filterIndicators(list []indicator.Indicator, q string) []indicator.Indicator {
	if strings.TrimSpace(q) == "" {
		return append([]indicator.Indicator(nil), list...)
	}
	var out []indicator.Indicator
	for _, i := range list {
		if MatchesQuery(q, i.Code, i.Label, i.Description) {
			out = append(out, i)
		}
	}
	return out
}

// cleanCodes trims codes and drops blanks and repeats, keeping order.
func cleanCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
