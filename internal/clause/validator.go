// Package clause contains the pure text predicates and normalizers applied
// to contract clauses and to the fields a model returns for them.
//
// Everything in this package is deterministic and free of side effects;
// functions may be called concurrently.
package clause

import "strings"

// MinWords is the minimum number of whitespace-delimited tokens a clause
// must contain.
const MinWords = 5

// junkPhrases mark boilerplate such as tables of contents, exhibit and
// signature headers. Matching is a case-insensitive substring test.
var junkPhrases = []string{
	"table of contents",
	"exhibit",
	"signature",
	"page",
	"schedule",
	"index",
}

// IsValid reports whether text looks like a genuine contract clause rather
// than boilerplate or extraction junk.
func IsValid(text string) bool {
	if len(strings.Fields(text)) < MinWords {
		return false
	}

	lower := strings.ToLower(text)
	for _, junk := range junkPhrases {
		if strings.Contains(lower, junk) {
			return false
		}
	}
	return true
}

// FilterValid returns the cleaned form of every valid clause, preserving
// input order.
func FilterValid(clauses []string) []string {
	out := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if IsValid(c) {
			out = append(out, CleanText(c))
		}
	}
	return out
}
