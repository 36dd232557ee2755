package enrich

import (
	"regexp"
	"strings"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

// Scoring weights: the title carries most of the signal, the author
// disambiguates. Tunable threshold lives in config, not here.
const (
	titleWeight  = 0.7
	authorWeight = 0.3
)

var (
	punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// normalizeQuery case-folds, strips punctuation, and collapses whitespace
// so catalog queries and similarity comparisons see the same form.
func normalizeQuery(s string) string {
	s = strings.ToLower(s)
	s = punctuationRegex.ReplaceAllString(s, " ")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// tokenSet splits a normalized string into its unique tokens.
func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// tokenSetSimilarity is the Jaccard overlap of two token sets in [0, 1].
// Two empty strings count as identical; one empty side counts as disjoint.
func tokenSetSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// similarityScore rates how well a candidate matches a mention,
// weighted 70% title and 30% author.
func similarityScore(mention entities.RawMention, candidate entities.CandidateMatch) float64 {
	titleSim := tokenSetSimilarity(normalizeQuery(mention.Title), normalizeQuery(candidate.Title))
	authorSim := tokenSetSimilarity(normalizeQuery(mention.Author), normalizeQuery(candidate.Author))
	return titleWeight*titleSim + authorWeight*authorSim
}

// populatedFieldCount counts the optional catalog fields a candidate
// carries; used to break score ties in favor of richer candidates.
func populatedFieldCount(c entities.CandidateMatch) int {
	count := 0
	if c.ISBN13 != "" {
		count++
	}
	if c.ISBN10 != "" {
		count++
	}
	if c.Publisher != "" {
		count++
	}
	if c.PublishYear != 0 {
		count++
	}
	if c.Pages != 0 {
		count++
	}
	if c.CoverURL != "" {
		count++
	}
	if c.CatalogID != "" {
		count++
	}
	return count
}
