package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AutumnsGrove/FableParser/internal/catalog"
	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/entities"
)

const (
	raindropAPIURL         = "https://api.raindrop.io/rest/v1/raindrop"
	defaultRaindropTimeout = 15 * time.Second
)

// ErrInvalidToken indicates the provided Raindrop API token is invalid
var ErrInvalidToken = errors.New("invalid or expired Raindrop token")

// ErrRateLimited indicates the Raindrop API rate limit was exceeded
var ErrRateLimited = errors.New("Raindrop API rate limit exceeded")

// RaindropSink mirrors finished books as bookmarks in a Raindrop.io
// collection.
type RaindropSink struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	collectionID int64
	tags         []string
}

func NewRaindropSink(cfg config.Raindrop) *RaindropSink {
	return &RaindropSink{
		httpClient: &http.Client{
			Timeout: defaultRaindropTimeout,
		},
		baseURL:      raindropAPIURL,
		token:        cfg.Token,
		collectionID: cfg.CollectionID,
		tags:         cfg.Tags,
	}
}

type raindropPayload struct {
	Link       string             `json:"link"`
	Title      string             `json:"title"`
	Excerpt    string             `json:"excerpt,omitempty"`
	Tags       []string           `json:"tags,omitempty"`
	Cover      string             `json:"cover,omitempty"`
	Collection *raindropReference `json:"collection,omitempty"`
}

type raindropReference struct {
	ID int64 `json:"$id"`
}

// Mirror creates one bookmark for the record. Failures are reported to
// the caller and never roll back the already-written local document.
func (s *RaindropSink) Mirror(ctx context.Context, doc entities.RenderedDocument, record entities.BookRecord) error {
	payload := raindropPayload{
		Link:    bookmarkLink(record),
		Title:   record.Title,
		Excerpt: bookmarkExcerpt(record),
		Tags:    s.tags,
		Cover:   record.CoverURL,
	}
	if s.collectionID != 0 {
		payload.Collection = &raindropReference{ID: s.collectionID}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode bookmark: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create bookmark request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bookmark request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrInvalidToken
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected raindrop status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// bookmarkLink picks the most specific catalog URL available, falling
// back to an Open Library search so the bookmark always resolves.
func bookmarkLink(record entities.BookRecord) string {
	switch {
	case record.OpenLibraryID != "":
		return catalog.BookURL(record.OpenLibraryID)
	case record.ISBN13 != "":
		return fmt.Sprintf("https://openlibrary.org/isbn/%s", record.ISBN13)
	default:
		q := url.QueryEscape(record.Title + " " + record.Author)
		return fmt.Sprintf("https://openlibrary.org/search?q=%s", q)
	}
}

func bookmarkExcerpt(record entities.BookRecord) string {
	excerpt := fmt.Sprintf("by %s", record.Author)
	if record.ISBN13 != "" {
		excerpt += fmt.Sprintf(" | ISBN: %s", record.ISBN13)
	}
	excerpt += fmt.Sprintf(" | %s %s", record.ReadingStatus.Icon(), record.ReadingStatus.Label())
	return excerpt
}
