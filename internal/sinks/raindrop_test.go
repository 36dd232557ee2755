package sinks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/entities"
)

func enrichedTestRecord() entities.BookRecord {
	return entities.BookRecord{
		Title:         "Mistborn",
		Author:        "Brandon Sanderson",
		ReadingStatus: entities.StatusWantToRead,
		ISBN13:        "9780765350381",
		OpenLibraryID: "OL27214493M",
		CoverURL:      "https://covers.openlibrary.org/b/isbn/9780765350381-L.jpg",
		Source:        entities.SourceFable,
		DateAdded:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newRaindropTestSink(t *testing.T, handler http.HandlerFunc) *RaindropSink {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sink := NewRaindropSink(config.Raindrop{
		Token:        "test-token",
		CollectionID: 42,
		Tags:         []string{"books", "fable"},
	})
	sink.baseURL = server.URL
	return sink
}

func TestRaindropMirror(t *testing.T) {
	doc := entities.RenderedDocument{Identity: entities.DocumentIdentity{Slug: "sanderson_mistborn"}}

	t.Run("posts a bookmark with auth and payload", func(t *testing.T) {
		var gotAuth, gotContentType string
		var gotPayload map[string]any
		sink := newRaindropTestSink(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotContentType = r.Header.Get("Content-Type")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			w.Write([]byte(`{"result": true}`))
		})

		err := sink.Mirror(context.Background(), doc, enrichedTestRecord())
		require.NoError(t, err)

		assert.Equal(t, "Bearer test-token", gotAuth)
		assert.Equal(t, "application/json", gotContentType)

		assert.Equal(t, "https://openlibrary.org/books/OL27214493M", gotPayload["link"])
		assert.Equal(t, "Mistborn", gotPayload["title"])
		assert.Equal(t, "https://covers.openlibrary.org/b/isbn/9780765350381-L.jpg", gotPayload["cover"])
		assert.Equal(t, []any{"books", "fable"}, gotPayload["tags"])

		excerpt, _ := gotPayload["excerpt"].(string)
		assert.Contains(t, excerpt, "by Brandon Sanderson")
		assert.Contains(t, excerpt, "ISBN: 9780765350381")
		assert.Contains(t, excerpt, "Want to Read")

		collection, ok := gotPayload["collection"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(42), collection["$id"])
	})

	t.Run("zero collection id omits the collection", func(t *testing.T) {
		var gotPayload map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			w.Write([]byte(`{"result": true}`))
		}))
		defer server.Close()

		sink := NewRaindropSink(config.Raindrop{Token: "test-token"})
		sink.baseURL = server.URL

		err := sink.Mirror(context.Background(), doc, enrichedTestRecord())
		require.NoError(t, err)
		assert.NotContains(t, gotPayload, "collection")
	})

	t.Run("created status is also success", func(t *testing.T) {
		sink := newRaindropTestSink(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})

		assert.NoError(t, sink.Mirror(context.Background(), doc, enrichedTestRecord()))
	})

	t.Run("unauthorized maps to the token error", func(t *testing.T) {
		sink := newRaindropTestSink(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		err := sink.Mirror(context.Background(), doc, enrichedTestRecord())
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rate limit maps to the rate limit error", func(t *testing.T) {
		sink := newRaindropTestSink(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		err := sink.Mirror(context.Background(), doc, enrichedTestRecord())
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("other failures report status and body", func(t *testing.T) {
		sink := newRaindropTestSink(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "link is required"}`))
		})

		err := sink.Mirror(context.Background(), doc, enrichedTestRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
		assert.Contains(t, err.Error(), "link is required")
	})
}

func TestBookmarkLink(t *testing.T) {
	t.Run("prefers the edition page", func(t *testing.T) {
		assert.Equal(t, "https://openlibrary.org/books/OL27214493M", bookmarkLink(enrichedTestRecord()))
	})

	t.Run("falls back to the isbn resolver", func(t *testing.T) {
		record := enrichedTestRecord()
		record.OpenLibraryID = ""
		assert.Equal(t, "https://openlibrary.org/isbn/9780765350381", bookmarkLink(record))
	})

	t.Run("degraded records link a search", func(t *testing.T) {
		link := bookmarkLink(entities.BookRecord{Title: "Mistborn", Author: "Brandon Sanderson"})
		assert.Equal(t, "https://openlibrary.org/search?q=Mistborn+Brandon+Sanderson", link)
	})
}
