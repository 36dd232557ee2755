package enrich

import (
	"context"
	"log"
	"time"

	"github.com/AutumnsGrove/FableParser/internal/catalog"
	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/entities"
)

// CatalogClient is the bibliographic backend the enricher queries.
type CatalogClient interface {
	Search(ctx context.Context, title, author string) ([]entities.CandidateMatch, error)
}

// Enricher resolves raw mentions against a catalog and merges the best
// candidate into a canonical BookRecord.
type Enricher struct {
	catalog   CatalogClient
	threshold float64
	timeout   time.Duration
	now       func() time.Time
}

func NewEnricher(client CatalogClient, cfg config.Catalog) *Enricher {
	threshold := cfg.MatchThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Enricher{
		catalog:   client,
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Enrich resolves one mention. It never fails: zero candidates, lookup
// timeouts, and transport errors all degrade to a record carrying only
// the mention fields. Mention title/author/status always win over the
// catalog's spelling; candidate title/author are used for matching only.
func (e *Enricher) Enrich(ctx context.Context, mention entities.RawMention) entities.BookRecord {
	record := entities.BookRecord{
		Title:         mention.Title,
		Author:        mention.Author,
		ReadingStatus: mention.ReadingStatus,
		Source:        entities.SourceFable,
		DateAdded:     e.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	candidates, err := e.catalog.Search(ctx, normalizeQuery(mention.Title), normalizeQuery(mention.Author))
	if err != nil {
		log.Printf("enrich: lookup failed for %q by %q: %v", mention.Title, mention.Author, err)
		return record
	}
	if len(candidates) == 0 {
		return record
	}

	best, ok := selectCandidate(scoreCandidates(mention, candidates), e.threshold)
	if !ok {
		return record
	}
	return merge(record, best)
}

// scoreCandidates fills in MatchScore for candidates that arrived without
// one; backends that provide native relevance scores keep them.
func scoreCandidates(mention entities.RawMention, candidates []entities.CandidateMatch) []entities.CandidateMatch {
	scored := make([]entities.CandidateMatch, len(candidates))
	for i, c := range candidates {
		if c.MatchScore == 0 {
			c.MatchScore = similarityScore(mention, c)
		}
		scored[i] = c
	}
	return scored
}

// selectCandidate picks the highest-scoring candidate at or above the
// threshold. Ties go to the candidate with more populated optional
// fields, then to catalog order. A confident wrong match is worse than
// an empty field, so anything below the threshold is a no-match.
func selectCandidate(candidates []entities.CandidateMatch, threshold float64) (entities.CandidateMatch, bool) {
	bestIdx := -1
	for i, c := range candidates {
		if c.MatchScore < threshold {
			continue
		}
		if bestIdx == -1 {
			bestIdx = i
			continue
		}
		best := candidates[bestIdx]
		switch {
		case c.MatchScore > best.MatchScore:
			bestIdx = i
		case c.MatchScore == best.MatchScore && populatedFieldCount(c) > populatedFieldCount(best):
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return entities.CandidateMatch{}, false
	}
	return candidates[bestIdx], true
}

// merge copies the selected candidate's bibliographic fields onto the
// record. The mention's own fields are never overwritten.
func merge(record entities.BookRecord, candidate entities.CandidateMatch) entities.BookRecord {
	record.ISBN13 = candidate.ISBN13
	record.ISBN10 = candidate.ISBN10
	record.CoverURL = candidate.CoverURL
	record.OpenLibraryID = candidate.CatalogID
	record.Publisher = candidate.Publisher
	record.PublishYear = candidate.PublishYear
	record.Pages = candidate.Pages

	if record.CoverURL == "" && record.ISBN13 != "" {
		record.CoverURL = catalog.CoverURL(record.ISBN13)
	}
	return record
}
