package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"shelf.png", "image/png"},
		{"shelf.PNG", "image/png"},
		{"shelf.jpg", "image/jpeg"},
		{"shelf.jpeg", "image/jpeg"},
		{"shelf.webp", "image/webp"},
		{"shelf.gif", "image/gif"},
		{"/uploads/2025/shelf.png", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			mediaType, err := DetectMediaType(tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mediaType)
		})
	}

	t.Run("unsupported extensions are rejected", func(t *testing.T) {
		for _, filename := range []string{"shelf.pdf", "shelf.bmp", "shelf", "shelf.md"} {
			_, err := DetectMediaType(filename)
			assert.ErrorIs(t, err, ErrInvalidImage, filename)
		}
	})
}

func TestParseMentions(t *testing.T) {
	t.Run("parses a clean reply", func(t *testing.T) {
		mentions, err := parseMentions(`{"books": [
			{"title": "Mistborn", "author": "Brandon Sanderson", "reading_status": "want-to-read"},
			{"title": "The Hobbit", "author": "J.R.R. Tolkien", "reading_status": "read"}
		]}`)
		require.NoError(t, err)
		require.Len(t, mentions, 2)

		assert.Equal(t, entities.RawMention{
			Title:         "Mistborn",
			Author:        "Brandon Sanderson",
			ReadingStatus: entities.StatusWantToRead,
		}, mentions[0])
		assert.Equal(t, entities.StatusRead, mentions[1].ReadingStatus)
	})

	t.Run("ignores prose and code fences around the payload", func(t *testing.T) {
		reply := "Here are the books I can see in the screenshot:\n\n" +
			"```json\n" +
			`{"books": [{"title": "Mistborn", "author": "Brandon Sanderson", "reading_status": "read"}]}` +
			"\n```\n\nLet me know if you need anything else!"

		mentions, err := parseMentions(reply)
		require.NoError(t, err)
		require.Len(t, mentions, 1)
		assert.Equal(t, "Mistborn", mentions[0].Title)
	})

	t.Run("trims whitespace and maps unknown statuses", func(t *testing.T) {
		mentions, err := parseMentions(`{"books": [
			{"title": "  Mistborn ", "author": " Brandon Sanderson", "reading_status": "on-hold"}
		]}`)
		require.NoError(t, err)
		require.Len(t, mentions, 1)
		assert.Equal(t, "Mistborn", mentions[0].Title)
		assert.Equal(t, "Brandon Sanderson", mentions[0].Author)
		assert.Equal(t, entities.StatusUnknown, mentions[0].ReadingStatus)
	})

	t.Run("skips entries missing a title or author", func(t *testing.T) {
		mentions, err := parseMentions(`{"books": [
			{"title": "Mistborn", "author": "Brandon Sanderson", "reading_status": "read"},
			{"title": "", "author": "Mystery Author", "reading_status": "read"},
			{"title": "Orphaned Title", "author": "", "reading_status": "read"}
		]}`)
		require.NoError(t, err)
		require.Len(t, mentions, 1)
		assert.Equal(t, "Mistborn", mentions[0].Title)
	})

	t.Run("empty book list means no books found", func(t *testing.T) {
		_, err := parseMentions(`{"books": []}`)
		assert.ErrorIs(t, err, ErrNoBooksFound)
	})

	t.Run("all entries invalid means no books found", func(t *testing.T) {
		_, err := parseMentions(`{"books": [{"title": "", "author": ""}]}`)
		assert.ErrorIs(t, err, ErrNoBooksFound)
	})

	t.Run("reply without json means no books found", func(t *testing.T) {
		_, err := parseMentions("I could not find any books in this image.")
		assert.ErrorIs(t, err, ErrNoBooksFound)
	})

	t.Run("malformed json is a parse error", func(t *testing.T) {
		_, err := parseMentions(`{"books": [{"title": }`)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoBooksFound)
	})
}
