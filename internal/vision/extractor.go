package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

var (
	ErrNoBooksFound = errors.New("vision: no books detected in screenshot")
	ErrInvalidImage = errors.New("vision: unsupported image type")
)

// Extractor produces raw book mentions from a screenshot. One
// implementation per vision backend, selected at wiring time.
type Extractor interface {
	Extract(ctx context.Context, image Image) ([]entities.RawMention, error)
}

// Image is one screenshot handed to an extractor.
type Image struct {
	Data      []byte
	MediaType string // e.g. image/png
	Name      string // original filename, for logs and run history
}

// DetectMediaType maps a filename extension to its image media type.
func DetectMediaType(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".webp":
		return "image/webp", nil
	case ".gif":
		return "image/gif", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidImage, filename)
	}
}

// extractionPrompt directs the model to return machine-readable JSON only.
const extractionPrompt = `Look at this screenshot from the Fable reading app and identify every book shown.

For each book, extract:
- title: the book's title exactly as displayed
- author: the author's name exactly as displayed
- reading_status: one of "want-to-read", "currently-reading", "read"; use "unknown" if the shelf or status is not visible

Respond with JSON only, no commentary, in this exact shape:
{"books": [{"title": "...", "author": "...", "reading_status": "..."}]}

If no books are visible, respond with {"books": []}.`

type visionPayload struct {
	Books []struct {
		Title         string `json:"title"`
		Author        string `json:"author"`
		ReadingStatus string `json:"reading_status"`
	} `json:"books"`
}

// parseMentions pulls the JSON block out of the model's reply. Models
// sometimes wrap the payload in prose or code fences, so everything
// outside the outermost braces is ignored. Entries missing a title or
// author are skipped; unrecognized statuses map to unknown.
func parseMentions(text string) ([]entities.RawMention, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: reply carried no JSON", ErrNoBooksFound)
	}

	var payload visionPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse extraction reply: %w", err)
	}

	mentions := make([]entities.RawMention, 0, len(payload.Books))
	for _, b := range payload.Books {
		mention := entities.RawMention{
			Title:         strings.TrimSpace(b.Title),
			Author:        strings.TrimSpace(b.Author),
			ReadingStatus: entities.ParseReadingStatus(b.ReadingStatus),
		}
		if err := mention.Validate(); err != nil {
			log.Printf("vision: skipping incomplete entry %q / %q", b.Title, b.Author)
			continue
		}
		mentions = append(mentions, mention)
	}

	if len(mentions) == 0 {
		return nil, ErrNoBooksFound
	}
	return mentions, nil
}
