package markdown

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

var ErrMissingFrontmatter = errors.New("document has no frontmatter block")

// fileFrontmatter mirrors the recognized frontmatter field set for decoding
// documents this tool previously wrote.
type fileFrontmatter struct {
	Title         string `yaml:"title"`
	Author        string `yaml:"author"`
	ISBN          string `yaml:"isbn"`
	ISBN10        string `yaml:"isbn_10"`
	CoverURL      string `yaml:"cover_url"`
	OpenLibraryID string `yaml:"open_library_id"`
	Source        string `yaml:"source"`
	DateAdded     string `yaml:"date_added"`
	Status        string `yaml:"status"`
	ReadingStatus string `yaml:"reading_status"`
	Publisher     string `yaml:"publisher"`
	PublishYear   int    `yaml:"publish_year"`
	Pages         int    `yaml:"pages"`
}

// ParseDocument splits a document into its frontmatter record and body.
// Used by the refresh and rename flows to rebuild records from disk.
func ParseDocument(content string) (entities.BookRecord, string, error) {
	var record entities.BookRecord

	rest, found := strings.CutPrefix(content, "---\n")
	if !found {
		return record, "", ErrMissingFrontmatter
	}
	block, body, found := strings.Cut(rest, "\n---\n")
	if !found {
		return record, "", ErrMissingFrontmatter
	}

	var fm fileFrontmatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return record, "", fmt.Errorf("decode frontmatter: %w", err)
	}
	if fm.Title == "" || fm.Author == "" {
		return record, "", fmt.Errorf("frontmatter missing title or author")
	}

	status := fm.ReadingStatus
	if status == "" {
		status = fm.Status
	}

	record = entities.BookRecord{
		Title:         fm.Title,
		Author:        fm.Author,
		ReadingStatus: entities.ParseReadingStatus(status),
		ISBN13:        fm.ISBN,
		ISBN10:        fm.ISBN10,
		CoverURL:      fm.CoverURL,
		OpenLibraryID: fm.OpenLibraryID,
		Source:        fm.Source,
		Publisher:     fm.Publisher,
		PublishYear:   fm.PublishYear,
		Pages:         fm.Pages,
	}
	if fm.DateAdded != "" {
		if added, err := time.Parse("2006-01-02", fm.DateAdded); err == nil {
			record.DateAdded = added
		}
	}

	return record, strings.TrimPrefix(body, "\n"), nil
}

// ParseFile reads and parses one document from disk.
func ParseFile(path string) (entities.BookRecord, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return entities.BookRecord{}, "", fmt.Errorf("read document: %w", err)
	}
	return ParseDocument(string(content))
}
