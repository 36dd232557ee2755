package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/entities"
	"github.com/AutumnsGrove/FableParser/internal/markdown"
	"github.com/AutumnsGrove/FableParser/internal/sinks"
	"github.com/AutumnsGrove/FableParser/internal/vision"
)

// stubExtractor returns canned mentions without looking at the image.
type stubExtractor struct {
	mentions []entities.RawMention
	err      error
}

func (s *stubExtractor) Extract(_ context.Context, _ vision.Image) ([]entities.RawMention, error) {
	return s.mentions, s.err
}

// stubEnricher enriches every mention except the titles listed in degrade.
// A per-title delay map simulates slow catalog lookups.
type stubEnricher struct {
	degrade map[string]bool
	delays  map[string]time.Duration

	mu    sync.Mutex
	calls int
}

func (s *stubEnricher) Enrich(_ context.Context, mention entities.RawMention) entities.BookRecord {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if d := s.delays[mention.Title]; d > 0 {
		time.Sleep(d)
	}

	record := entities.BookRecord{
		Title:         mention.Title,
		Author:        mention.Author,
		ReadingStatus: mention.ReadingStatus,
		Source:        entities.SourceFable,
		DateAdded:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	if !s.degrade[mention.Title] {
		record.ISBN13 = "9780765350381"
	}
	return record
}

// failingWriter fails writes for the given slugs and delegates the rest.
type failingWriter struct {
	inner    LocalWriter
	failSlug string
}

func (w *failingWriter) Write(doc entities.RenderedDocument) error {
	if doc.Identity.Slug == w.failSlug {
		return errors.New("disk full")
	}
	return w.inner.Write(doc)
}

// recordingMirror captures every mirrored document; fails when told to.
type recordingMirror struct {
	mu    sync.Mutex
	slugs []string
	err   error
}

func (m *recordingMirror) Mirror(_ context.Context, doc entities.RenderedDocument, _ entities.BookRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slugs = append(m.slugs, doc.Identity.Slug)
	return m.err
}

// recordingRunStore captures the persisted run summary.
type recordingRunStore struct {
	runs []*entities.Run
}

func (r *recordingRunStore) RecordRun(run *entities.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

func mention(title, author string) entities.RawMention {
	return entities.RawMention{Title: title, Author: author, ReadingStatus: entities.StatusWantToRead}
}

func newTestProcessor(t *testing.T, extractor vision.Extractor, enricher Enricher, opts ...func(*Processor)) (*Processor, string) {
	t.Helper()
	outputDir := t.TempDir()
	p := NewProcessor(extractor, enricher, markdown.NewRenderer(nil), sinks.NewLocalSink(), nil, nil,
		config.Pipeline{OutputDir: outputDir, Workers: 4})
	for _, opt := range opts {
		opt(p)
	}
	return p, outputDir
}

func testImage() vision.Image {
	return vision.Image{Data: []byte("fake"), MediaType: "image/png", Name: "shelf.png"}
}

func TestProcessImage(t *testing.T) {
	t.Run("one degraded mention does not disturb the rest", func(t *testing.T) {
		extractor := &stubExtractor{mentions: []entities.RawMention{
			mention("Mistborn", "Brandon Sanderson"),
			mention("Elantris", "Brandon Sanderson"),
			mention("Warbreaker", "Brandon Sanderson"),
			mention("The Way of Kings", "Brandon Sanderson"),
			mention("Oathbringer", "Brandon Sanderson"),
		}}
		enricher := &stubEnricher{degrade: map[string]bool{"Warbreaker": true}}
		p, outputDir := newTestProcessor(t, extractor, enricher)

		summary, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.NoError(t, err)

		require.Len(t, summary.Outcomes, 5)
		assert.Equal(t, 4, summary.Enriched)
		assert.Equal(t, 1, summary.Degraded)
		assert.Equal(t, 0, summary.Failed)

		assert.Equal(t, entities.OutcomeDegraded, summary.Outcomes[2].Status)
		assert.False(t, summary.Outcomes[2].Record.Enriched())

		entries, err := os.ReadDir(outputDir)
		require.NoError(t, err)
		assert.Len(t, entries, 5)

		// The degraded document exists and carries no catalog fields.
		content, err := os.ReadFile(filepath.Join(outputDir, "sanderson_warbreaker.md"))
		require.NoError(t, err)
		assert.NotContains(t, string(content), "isbn:")
	})

	t.Run("outcomes follow extraction order regardless of completion order", func(t *testing.T) {
		mentions := []entities.RawMention{
			mention("Alpha", "Some Author"),
			mention("Beta", "Some Author"),
			mention("Gamma", "Some Author"),
			mention("Delta", "Some Author"),
			mention("Epsilon", "Some Author"),
			mention("Zeta", "Some Author"),
		}
		// Earlier mentions finish last.
		delays := make(map[string]time.Duration, len(mentions))
		for i, m := range mentions {
			delays[m.Title] = time.Duration(len(mentions)-i) * 10 * time.Millisecond
		}
		extractor := &stubExtractor{mentions: mentions}
		enricher := &stubEnricher{delays: delays}
		p, _ := newTestProcessor(t, extractor, enricher)

		summary, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.NoError(t, err)

		require.Len(t, summary.Outcomes, len(mentions))
		for i, outcome := range summary.Outcomes {
			assert.Equal(t, i, outcome.Position)
			assert.Equal(t, mentions[i], outcome.Mention)
		}
	})

	t.Run("extraction failure aborts the run", func(t *testing.T) {
		extractor := &stubExtractor{err: vision.ErrNoBooksFound}
		p, outputDir := newTestProcessor(t, extractor, &stubEnricher{})

		summary, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.Error(t, err)
		assert.ErrorIs(t, err, vision.ErrNoBooksFound)
		assert.Nil(t, summary)

		entries, err := os.ReadDir(outputDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("case-variant duplicates get suffixed files", func(t *testing.T) {
		extractor := &stubExtractor{mentions: []entities.RawMention{
			mention("The Way of Kings", "Brandon Sanderson"),
			mention("The Way Of Kings", "Brandon Sanderson"),
		}}
		p, outputDir := newTestProcessor(t, extractor, &stubEnricher{})

		summary, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.NoError(t, err)

		assert.Equal(t, "sanderson_the-way-of-kings", summary.Outcomes[0].Identity.Slug)
		assert.Equal(t, "sanderson_the-way-of-kings-2", summary.Outcomes[1].Identity.Slug)

		assert.FileExists(t, filepath.Join(outputDir, "sanderson_the-way-of-kings.md"))
		assert.FileExists(t, filepath.Join(outputDir, "sanderson_the-way-of-kings-2.md"))
	})

	t.Run("write failure marks only that mention failed", func(t *testing.T) {
		extractor := &stubExtractor{mentions: []entities.RawMention{
			mention("Mistborn", "Brandon Sanderson"),
			mention("Elantris", "Brandon Sanderson"),
		}}
		p, outputDir := newTestProcessor(t, extractor, &stubEnricher{})
		p.local = &failingWriter{inner: sinks.NewLocalSink(), failSlug: "sanderson_mistborn"}

		summary, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.NoError(t, err)

		assert.Equal(t, entities.OutcomeFailed, summary.Outcomes[0].Status)
		assert.Contains(t, summary.Outcomes[0].Detail, "disk full")
		assert.Equal(t, entities.OutcomeEnriched, summary.Outcomes[1].Status)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 1, summary.Enriched)

		assert.NoFileExists(t, filepath.Join(outputDir, "sanderson_mistborn.md"))
		assert.FileExists(t, filepath.Join(outputDir, "sanderson_elantris.md"))
	})

	t.Run("mirror failures are reported but not retried", func(t *testing.T) {
		extractor := &stubExtractor{mentions: []entities.RawMention{
			mention("Mistborn", "Brandon Sanderson"),
		}}
		broken := &recordingMirror{err: errors.New("401 unauthorized")}
		healthy := &recordingMirror{}
		p, outputDir := newTestProcessor(t, extractor, &stubEnricher{})
		p.mirrors = []NamedMirror{
			{Name: "raindrop", Mirror: broken},
			{Name: "vault", Mirror: healthy},
		}

		summary, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.NoError(t, err)

		outcome := summary.Outcomes[0]
		assert.Equal(t, entities.OutcomeEnriched, outcome.Status)
		require.Len(t, outcome.SinkErrors, 1)
		assert.Contains(t, outcome.SinkErrors[0], "raindrop")
		assert.Contains(t, outcome.SinkErrors[0], "401")

		// Exactly one attempt each; the healthy mirror still ran.
		assert.Len(t, broken.slugs, 1)
		assert.Len(t, healthy.slugs, 1)

		// The local document is unaffected by mirror trouble.
		assert.FileExists(t, filepath.Join(outputDir, "sanderson_mistborn.md"))
	})

	t.Run("mirrors only see successfully written documents", func(t *testing.T) {
		extractor := &stubExtractor{mentions: []entities.RawMention{
			mention("Mistborn", "Brandon Sanderson"),
			mention("Elantris", "Brandon Sanderson"),
		}}
		mirror := &recordingMirror{}
		p, _ := newTestProcessor(t, extractor, &stubEnricher{})
		p.local = &failingWriter{inner: sinks.NewLocalSink(), failSlug: "sanderson_mistborn"}
		p.mirrors = []NamedMirror{{Name: "vault", Mirror: mirror}}

		_, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.NoError(t, err)

		assert.Equal(t, []string{"sanderson_elantris"}, mirror.slugs)
	})

	t.Run("run history captures counts and per-book outcomes", func(t *testing.T) {
		extractor := &stubExtractor{mentions: []entities.RawMention{
			mention("Mistborn", "Brandon Sanderson"),
			mention("Warbreaker", "Brandon Sanderson"),
		}}
		store := &recordingRunStore{}
		p, _ := newTestProcessor(t, extractor, &stubEnricher{degrade: map[string]bool{"Warbreaker": true}})
		p.recorder = store

		summary, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerWeb)
		require.NoError(t, err)

		require.Len(t, store.runs, 1)
		run := store.runs[0]
		assert.Equal(t, summary.RunID, run.UUID)
		assert.Equal(t, entities.TriggerWeb, run.Trigger)
		assert.Equal(t, "shelf.png", run.ImageName)
		assert.Equal(t, 2, run.BooksTotal)
		assert.Equal(t, 1, run.BooksEnriched)
		assert.Equal(t, 1, run.BooksDegraded)

		require.Len(t, run.Books, 2)
		assert.Equal(t, 0, run.Books[0].Position)
		assert.Equal(t, "Mistborn", run.Books[0].Title)
		assert.Equal(t, entities.OutcomeEnriched, run.Books[0].Status)
		assert.Equal(t, entities.OutcomeDegraded, run.Books[1].Status)
	})

	t.Run("distinct runs get distinct ids", func(t *testing.T) {
		extractor := &stubExtractor{mentions: []entities.RawMention{
			mention("Mistborn", "Brandon Sanderson"),
		}}
		p, _ := newTestProcessor(t, extractor, &stubEnricher{})

		first, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.NoError(t, err)
		second, err := p.ProcessImage(context.Background(), testImage(), entities.TriggerCLI)
		require.NoError(t, err)

		assert.NotEqual(t, first.RunID, second.RunID)
	})
}

func TestEnrichAllBoundsWorkers(t *testing.T) {
	// With many more mentions than workers, the pool never runs more than
	// the configured number of lookups at once.
	var mu sync.Mutex
	inFlight, peak := 0, 0

	enricher := enricherFunc(func(ctx context.Context, m entities.RawMention) entities.BookRecord {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return entities.BookRecord{Title: m.Title, Author: m.Author}
	})

	mentions := make([]entities.RawMention, 20)
	for i := range mentions {
		mentions[i] = mention(fmt.Sprintf("Book %02d", i), "Some Author")
	}

	p := NewProcessor(nil, enricher, markdown.NewRenderer(nil), sinks.NewLocalSink(), nil, nil,
		config.Pipeline{OutputDir: "unused", Workers: 4})
	records := p.enrichAll(context.Background(), mentions)

	require.Len(t, records, 20)
	for i, record := range records {
		assert.Equal(t, mentions[i].Title, record.Title)
	}
	assert.LessOrEqual(t, peak, 4)
	assert.Greater(t, peak, 1)
}

func TestNewProcessorClampsWorkers(t *testing.T) {
	base := config.Pipeline{OutputDir: "unused"}

	tests := []struct {
		name       string
		configured int
		expected   int
	}{
		{"zero becomes one", 0, 1},
		{"negative becomes one", -3, 1},
		{"in range stays", 6, 6},
		{"above cap is clamped", 64, maxWorkers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Workers = tt.configured
			p := NewProcessor(nil, nil, nil, nil, nil, nil, cfg)
			assert.Equal(t, tt.expected, p.workers)
		})
	}
}

type enricherFunc func(ctx context.Context, mention entities.RawMention) entities.BookRecord

func (f enricherFunc) Enrich(ctx context.Context, mention entities.RawMention) entities.BookRecord {
	return f(ctx, mention)
}

func TestRefreshFile(t *testing.T) {
	writeDocument := func(t *testing.T, dir, slug string, record entities.BookRecord) string {
		t.Helper()
		path := filepath.Join(dir, slug+".md")
		doc := markdown.NewRenderer(nil).Render(record, entities.DocumentIdentity{Slug: slug, Filepath: path})
		require.NoError(t, os.WriteFile(path, []byte(doc.Content), 0644))
		return path
	}

	degradedRecord := entities.BookRecord{
		Title:         "Mistborn",
		Author:        "Brandon Sanderson",
		ReadingStatus: entities.StatusWantToRead,
		Source:        entities.SourceFable,
		DateAdded:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	t.Run("fills in catalog fields and keeps the original date", func(t *testing.T) {
		p, outputDir := newTestProcessor(t, nil, &stubEnricher{})
		path := writeDocument(t, outputDir, "sanderson_mistborn", degradedRecord)

		updated, err := p.RefreshFile(context.Background(), path)
		require.NoError(t, err)
		assert.True(t, updated)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `isbn: "9780765350381"`)
		assert.Contains(t, string(content), "date_added: 2024-01-15")
	})

	t.Run("degraded lookup leaves the file untouched", func(t *testing.T) {
		p, outputDir := newTestProcessor(t, nil, &stubEnricher{degrade: map[string]bool{"Mistborn": true}})
		path := writeDocument(t, outputDir, "sanderson_mistborn", degradedRecord)

		before, err := os.ReadFile(path)
		require.NoError(t, err)

		updated, err := p.RefreshFile(context.Background(), path)
		require.NoError(t, err)
		assert.False(t, updated)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("collision-suffixed files keep their names", func(t *testing.T) {
		p, outputDir := newTestProcessor(t, nil, &stubEnricher{})
		path := writeDocument(t, outputDir, "sanderson_mistborn-2", degradedRecord)

		updated, err := p.RefreshFile(context.Background(), path)
		require.NoError(t, err)
		assert.True(t, updated)

		assert.FileExists(t, path)
		assert.NoFileExists(t, filepath.Join(outputDir, "sanderson_mistborn.md"))
	})

	t.Run("unparseable file is an error", func(t *testing.T) {
		p, outputDir := newTestProcessor(t, nil, &stubEnricher{})
		path := filepath.Join(outputDir, "stray.md")
		require.NoError(t, os.WriteFile(path, []byte("no frontmatter here"), 0644))

		_, err := p.RefreshFile(context.Background(), path)
		assert.Error(t, err)
	})
}

func TestListDocuments(t *testing.T) {
	p, outputDir := newTestProcessor(t, nil, &stubEnricher{})

	for _, name := range []string{"b.md", "a.md", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(outputDir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(outputDir, "sub.md"), 0755))

	paths, err := p.ListDocuments()
	require.NoError(t, err)

	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	assert.Equal(t, []string{"a.md", "b.md"}, names)

	t.Run("missing directory is an error", func(t *testing.T) {
		missing := NewProcessor(nil, &stubEnricher{}, markdown.NewRenderer(nil), sinks.NewLocalSink(), nil, nil,
			config.Pipeline{OutputDir: filepath.Join(outputDir, "absent"), Workers: 1})
		_, err := missing.ListDocuments()
		assert.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "read output directory"))
	})
}
