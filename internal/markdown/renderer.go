package markdown

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AutumnsGrove/FableParser/internal/catalog"
	"github.com/AutumnsGrove/FableParser/internal/entities"
)

// DefaultFieldOrder is the recognized frontmatter field superset in its
// default render order. Any configured subset renders in the configured
// order; unrecognized names are skipped.
var DefaultFieldOrder = []string{
	"title", "author", "isbn", "isbn_10", "cover_url", "open_library_id",
	"source", "date_added", "status", "reading_status",
	"publisher", "publish_year", "pages",
}

// Renderer serializes a BookRecord into a frontmatter+body document.
// Pure: no I/O, no clock reads.
type Renderer struct {
	fields []string
}

func NewRenderer(fields []string) *Renderer {
	if len(fields) == 0 {
		fields = DefaultFieldOrder
	}
	return &Renderer{fields: fields}
}

// Render produces the document for a record. Recognized fields absent on
// the record are omitted from frontmatter entirely, so output stays
// diff-clean across enrichment variance.
func (r *Renderer) Render(record entities.BookRecord, identity entities.DocumentIdentity) entities.RenderedDocument {
	frontmatter := r.frontmatter(record)
	body := renderBody(record)

	var sb strings.Builder
	sb.WriteString("---\n")
	for _, field := range frontmatter {
		sb.WriteString(fmt.Sprintf("%s: %s\n", field.Key, field.Value))
	}
	sb.WriteString("---\n\n")
	sb.WriteString(body)

	return entities.RenderedDocument{
		Identity:    identity,
		Frontmatter: frontmatter,
		Body:        body,
		Content:     sb.String(),
	}
}

func (r *Renderer) frontmatter(record entities.BookRecord) []entities.FrontmatterField {
	out := make([]entities.FrontmatterField, 0, len(r.fields))
	for _, name := range r.fields {
		value, ok := fieldValue(record, name)
		if !ok {
			continue
		}
		out = append(out, entities.FrontmatterField{Key: name, Value: value})
	}
	return out
}

// fieldValue maps a recognized field name to its rendered scalar. The
// second return is false when the field is absent on the record.
func fieldValue(record entities.BookRecord, name string) (string, bool) {
	switch name {
	case "title":
		return quote(record.Title), true
	case "author":
		return quote(record.Author), true
	case "isbn":
		if record.ISBN13 == "" {
			return "", false
		}
		return quote(record.ISBN13), true
	case "isbn_10":
		if record.ISBN10 == "" {
			return "", false
		}
		return quote(record.ISBN10), true
	case "cover_url":
		return record.CoverURL, record.CoverURL != ""
	case "open_library_id":
		return record.OpenLibraryID, record.OpenLibraryID != ""
	case "source":
		return record.Source, record.Source != ""
	case "date_added":
		return record.DateAdded.Format("2006-01-02"), true
	case "status", "reading_status":
		return quote(string(record.ReadingStatus)), true
	case "publisher":
		if record.Publisher == "" {
			return "", false
		}
		return quote(record.Publisher), true
	case "publish_year":
		if record.PublishYear == 0 {
			return "", false
		}
		return strconv.Itoa(record.PublishYear), true
	case "pages":
		if record.Pages == 0 {
			return "", false
		}
		return strconv.Itoa(record.Pages), true
	default:
		return "", false
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// renderBody fills the fixed note template: heading, author and status
// lines, a details list for populated catalog fields, and a links section
// only when a linkable identifier exists.
func renderBody(record entities.BookRecord) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", record.Title))
	sb.WriteString(fmt.Sprintf("**Author**: %s\n\n", record.Author))
	sb.WriteString(fmt.Sprintf("**Status**: %s %s\n", record.ReadingStatus.Icon(), record.ReadingStatus.Label()))

	var details []string
	if record.Publisher != "" {
		details = append(details, fmt.Sprintf("- **Publisher**: %s", record.Publisher))
	}
	if record.PublishYear != 0 {
		details = append(details, fmt.Sprintf("- **Published**: %d", record.PublishYear))
	}
	if record.Pages != 0 {
		details = append(details, fmt.Sprintf("- **Pages**: %d", record.Pages))
	}
	if record.ISBN13 != "" {
		details = append(details, fmt.Sprintf("- **ISBN**: %s", record.ISBN13))
	}
	if record.ISBN10 != "" {
		details = append(details, fmt.Sprintf("- **ISBN-10**: %s", record.ISBN10))
	}
	if len(details) > 0 {
		sb.WriteString("\n## Details\n\n")
		sb.WriteString(strings.Join(details, "\n"))
		sb.WriteString("\n")
	}

	if record.ISBN13 != "" || record.OpenLibraryID != "" {
		sb.WriteString("\n## Links\n\n")
		if record.OpenLibraryID != "" {
			sb.WriteString(fmt.Sprintf("- [Open Library](%s)\n", catalog.BookURL(record.OpenLibraryID)))
		} else {
			sb.WriteString(fmt.Sprintf("- [Open Library](https://openlibrary.org/isbn/%s)\n", record.ISBN13))
		}
		if record.CoverURL != "" {
			sb.WriteString(fmt.Sprintf("- [Cover](%s)\n", record.CoverURL))
		}
	}

	return sb.String()
}
