package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/entities"
)

const userAgent = "FableParser/1.0 (https://github.com/AutumnsGrove/FableParser)"

// OpenLibraryClient searches the Open Library catalog for book candidates.
type OpenLibraryClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	maxResults int
	maxRetries int
}

// NewOpenLibraryClient creates a rate-limited Open Library search client.
func NewOpenLibraryClient(cfg config.Catalog) *OpenLibraryClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &OpenLibraryClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxResults: maxResults,
		maxRetries: cfg.MaxRetries,
	}
}

// Search queries search.json for the given title and author and converts
// every returned doc into a candidate. Zero results is a normal outcome
// (empty slice, nil error); errors are transport or server failures only.
func (c *OpenLibraryClient) Search(ctx context.Context, title, author string) ([]entities.CandidateMatch, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	q := title
	if author != "" {
		q = fmt.Sprintf("%s %s", title, author)
	}
	searchURL := fmt.Sprintf("%s/search.json?q=%s&limit=%d", c.baseURL, url.QueryEscape(q), c.maxResults)

	var result openLibrarySearchResult
	if err := c.getJSON(ctx, searchURL, &result); err != nil {
		return nil, err
	}

	candidates := make([]entities.CandidateMatch, 0, len(result.Docs))
	for i := range result.Docs {
		candidates = append(candidates, convertSearchDoc(&result.Docs[i]))
	}
	return candidates, nil
}

// getJSON performs a GET with rate limiting and retries on transient
// failures (network errors, 5xx, 429), decoding the body into out.
func (c *OpenLibraryClient) getJSON(ctx context.Context, rawURL string, out any) error {
	var lastErr error
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("catalog request: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode catalog response: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("catalog status: %d", resp.StatusCode)
			continue
		default:
			resp.Body.Close()
			return fmt.Errorf("catalog status: %d", resp.StatusCode)
		}
	}
	return lastErr
}

func convertSearchDoc(doc *openLibrarySearchDoc) entities.CandidateMatch {
	candidate := entities.CandidateMatch{
		Title:       doc.Title,
		PublishYear: doc.FirstPublishYear,
		Pages:       doc.NumberOfPagesMedian,
	}

	if len(doc.AuthorName) > 0 {
		candidate.Author = doc.AuthorName[0]
	}
	if len(doc.Publisher) > 0 {
		candidate.Publisher = doc.Publisher[0]
	}

	// The isbn array mixes 10- and 13-digit forms; take the first valid of each.
	for _, raw := range doc.ISBN {
		isbn := NormalizeISBN(raw)
		switch {
		case candidate.ISBN13 == "" && ValidISBN13(isbn):
			candidate.ISBN13 = isbn
		case candidate.ISBN10 == "" && ValidISBN10(isbn):
			candidate.ISBN10 = isbn
		}
		if candidate.ISBN13 != "" && candidate.ISBN10 != "" {
			break
		}
	}

	if candidate.ISBN13 != "" {
		candidate.CoverURL = CoverURL(candidate.ISBN13)
	} else if candidate.ISBN10 != "" {
		candidate.CoverURL = CoverURL(candidate.ISBN10)
	} else if doc.CoverI != 0 {
		candidate.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI)
	}

	// Prefer the concrete edition key; fall back to the work key.
	if doc.CoverEditionKey != "" {
		candidate.CatalogID = doc.CoverEditionKey
	} else if doc.Key != "" {
		candidate.CatalogID = strings.TrimPrefix(doc.Key, "/works/")
	}

	return candidate
}

// CoverURL builds the Open Library cover image URL for an ISBN.
func CoverURL(isbn string) string {
	return fmt.Sprintf("https://covers.openlibrary.org/b/isbn/%s-L.jpg", isbn)
}

// BookURL builds the Open Library page URL for an edition or work key.
func BookURL(catalogID string) string {
	return fmt.Sprintf("https://openlibrary.org/books/%s", catalogID)
}

// Open Library API response types (internal)

type openLibrarySearchResult struct {
	NumFound int                    `json:"numFound"`
	Docs     []openLibrarySearchDoc `json:"docs"`
}

type openLibrarySearchDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	FirstPublishYear    int      `json:"first_publish_year"`
	Publisher           []string `json:"publisher"`
	ISBN                []string `json:"isbn"`
	CoverI              int      `json:"cover_i"`
	CoverEditionKey     string   `json:"cover_edition_key"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
}
