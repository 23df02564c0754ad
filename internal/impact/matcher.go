package impact

import (
	"strings"
	"unicode"
)

// TextMatcher extracts and compares keywords. The analyzer's text heuristics
// only go through this interface.
type TextMatcher interface {
	// Keywords returns the unique significant tokens of text.
	Keywords(text string) []string
	// Shared counts the keywords present in both lists.
	Shared(a, b []string) int
}

// KeywordMatcher is the default TextMatcher: lowercase letter runs of two or
// more characters, minus common English stop words.
type KeywordMatcher struct{}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "all": true, "any": true,
	"we": true, "they": true, "our": true, "their": true, "them": true,
	"more": true, "most": true, "some": true, "other": true, "over": true,
}

func (KeywordMatcher) Keywords(text string) []string {
	words := letterRuns(text)
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// letterRuns splits text into lowercase runs of letters, stop words included.
func letterRuns(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func (KeywordMatcher) Shared(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	count := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if set[t] && !seen[t] {
			seen[t] = true
			count++
		}
	}
	return count
}
