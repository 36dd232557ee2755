package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "The Way Of Kings", "the way of kings"},
		{"strips punctuation", "Don't Panic!", "don t panic"},
		{"collapses whitespace", "  Brandon   Sanderson ", "brandon sanderson"},
		{"keeps digits", "Fahrenheit 451", "fahrenheit 451"},
		{"keeps unicode letters", "Café de Flore", "café de flore"},
		{"empty stays empty", "", ""},
		{"pure punctuation collapses to empty", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeQuery(tt.input))
		})
	}
}

func TestTokenSetSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "the way of kings", "the way of kings", 1},
		{"word order ignored", "kings of way the", "the way of kings", 1},
		{"disjoint", "mistborn", "elantris", 0},
		{"partial overlap", "the way of kings", "way of kings", 0.75},
		{"both empty", "", "", 1},
		{"one empty", "mistborn", "", 0},
		{"duplicate tokens collapse", "the the way", "the way", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tokenSetSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarityScore(t *testing.T) {
	mention := entities.RawMention{Title: "Mistborn", Author: "Brandon Sanderson"}

	t.Run("exact match scores 1", func(t *testing.T) {
		score := similarityScore(mention, entities.CandidateMatch{
			Title: "Mistborn", Author: "Brandon Sanderson",
		})
		assert.InDelta(t, 1.0, score, 1e-9)
	})

	t.Run("title dominates the weighting", func(t *testing.T) {
		titleOnly := similarityScore(mention, entities.CandidateMatch{
			Title: "Mistborn", Author: "Unknown Person",
		})
		authorOnly := similarityScore(mention, entities.CandidateMatch{
			Title: "Something Else", Author: "Brandon Sanderson",
		})
		assert.InDelta(t, 0.7, titleOnly, 1e-9)
		assert.InDelta(t, 0.3, authorOnly, 1e-9)
		assert.Greater(t, titleOnly, authorOnly)
	})

	t.Run("case and punctuation do not matter", func(t *testing.T) {
		score := similarityScore(mention, entities.CandidateMatch{
			Title: "MISTBORN!", Author: "brandon sanderson",
		})
		assert.InDelta(t, 1.0, score, 1e-9)
	})
}

func TestPopulatedFieldCount(t *testing.T) {
	assert.Equal(t, 0, populatedFieldCount(entities.CandidateMatch{Title: "only matching fields"}))

	assert.Equal(t, 7, populatedFieldCount(entities.CandidateMatch{
		Title:       "Mistborn",
		Author:      "Brandon Sanderson",
		ISBN13:      "9780765350381",
		ISBN10:      "076535038X",
		Publisher:   "Tor",
		PublishYear: 2006,
		Pages:       541,
		CoverURL:    "https://covers.openlibrary.org/b/isbn/9780765350381-L.jpg",
		CatalogID:   "OL27214493M",
	}))

	assert.Equal(t, 2, populatedFieldCount(entities.CandidateMatch{
		ISBN13: "9780765350381",
		Pages:  541,
	}))
}
