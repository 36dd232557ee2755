package entities

import (
	"errors"
	"time"
)

// ReadingStatus is the shelf a book sits on in the reading app.
type ReadingStatus string

const (
	StatusRead             ReadingStatus = "read"
	StatusCurrentlyReading ReadingStatus = "currently-reading"
	StatusWantToRead       ReadingStatus = "want-to-read"
	StatusUnknown          ReadingStatus = "unknown"
)

// ParseReadingStatus maps a raw status string to the enum; anything
// unrecognized becomes StatusUnknown rather than an error.
func ParseReadingStatus(s string) ReadingStatus {
	switch ReadingStatus(s) {
	case StatusRead, StatusCurrentlyReading, StatusWantToRead:
		return ReadingStatus(s)
	default:
		return StatusUnknown
	}
}

func (s ReadingStatus) IsValid() bool {
	switch s {
	case StatusRead, StatusCurrentlyReading, StatusWantToRead, StatusUnknown:
		return true
	}
	return false
}

// Label returns the human-readable display name for the status.
func (s ReadingStatus) Label() string {
	switch s {
	case StatusRead:
		return "Read"
	case StatusCurrentlyReading:
		return "Currently Reading"
	case StatusWantToRead:
		return "Want to Read"
	default:
		return "Unknown"
	}
}

// Icon returns the emoji paired with the status in rendered notes.
func (s ReadingStatus) Icon() string {
	switch s {
	case StatusRead:
		return "✅"
	case StatusCurrentlyReading:
		return "📖"
	case StatusWantToRead:
		return "📚"
	default:
		return "❓"
	}
}

// SourceFable marks records produced by the screenshot pipeline.
const SourceFable = "fable"

var ErrEmptyMention = errors.New("mention requires both title and author")

// RawMention is a single book entry as extracted from a screenshot,
// before any catalog enrichment. Immutable once created.
type RawMention struct {
	Title         string        `json:"title"`
	Author        string        `json:"author"`
	ReadingStatus ReadingStatus `json:"reading_status"`
}

// Validate enforces the non-empty title/author invariant at the point
// mentions enter the pipeline.
func (m RawMention) Validate() error {
	if m.Title == "" || m.Author == "" {
		return ErrEmptyMention
	}
	return nil
}

// CandidateMatch is one catalog search result considered for a mention.
// All bibliographic fields are optional; zero values mean absent.
type CandidateMatch struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN13        string  `json:"isbn_13,omitempty"`
	ISBN10        string  `json:"isbn_10,omitempty"`
	Publisher     string  `json:"publisher,omitempty"`
	PublishYear   int     `json:"publish_year,omitempty"`
	Pages         int     `json:"pages,omitempty"`
	CoverURL      string  `json:"cover_url,omitempty"`
	CatalogID     string  `json:"catalog_id,omitempty"` // Open Library edition key, e.g. OL27214493M
	MatchScore    float64 `json:"match_score"`
}

// BookRecord is the canonical enriched entity: the mention fields plus
// whatever the selected catalog candidate contributed. Catalog fields are
// independently optional; absence is a valid state, not an error. Records
// are passed by value and never mutated after creation.
type BookRecord struct {
	Title         string        `json:"title"`
	Author        string        `json:"author"`
	ReadingStatus ReadingStatus `json:"reading_status"`

	ISBN13        string `json:"isbn_13,omitempty"`
	ISBN10        string `json:"isbn_10,omitempty"`
	CoverURL      string `json:"cover_url,omitempty"`
	OpenLibraryID string `json:"open_library_id,omitempty"`
	Publisher     string `json:"publisher,omitempty"`
	PublishYear   int    `json:"publish_year,omitempty"`
	Pages         int    `json:"pages,omitempty"`

	Source    string    `json:"source"`
	DateAdded time.Time `json:"date_added"`
}

// Enriched reports whether any catalog field made it onto the record.
func (r BookRecord) Enriched() bool {
	return r.ISBN13 != "" || r.ISBN10 != "" || r.CoverURL != "" ||
		r.OpenLibraryID != "" || r.Publisher != "" || r.PublishYear != 0 || r.Pages != 0
}

// DocumentIdentity names the on-disk home of a record. Identical
// (author, title) pairs always map to the same slug, independent of
// enrichment outcome.
type DocumentIdentity struct {
	Slug     string `json:"slug"`
	Filepath string `json:"filepath"`
}

// RenderedDocument is the final frontmatter+body form, written once.
type RenderedDocument struct {
	Identity    DocumentIdentity
	Frontmatter []FrontmatterField
	Body        string
	Content     string // full file text, frontmatter block plus body
}

// FrontmatterField is one rendered key/value pair, order-significant.
type FrontmatterField struct {
	Key   string
	Value string
}
