package search

import "strings"

// queryTerms splits a query into the terms the media index will prefix
// match. Every term is kept: the terms are ORed, so each short word such
// as "do" still reaches descriptions like "dog".
func queryTerms(query string) []string {
	return strings.Fields(query)
}
