package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/entities"
	"github.com/AutumnsGrove/FableParser/internal/identity"
	"github.com/AutumnsGrove/FableParser/internal/markdown"
	"github.com/AutumnsGrove/FableParser/internal/vision"
)

const maxWorkers = 8

// Enricher resolves one mention into a canonical record. Never fails.
type Enricher interface {
	Enrich(ctx context.Context, mention entities.RawMention) entities.BookRecord
}

// LocalWriter is the primary document sink.
type LocalWriter interface {
	Write(doc entities.RenderedDocument) error
}

// Mirror sends a finished document to an optional external system.
type Mirror interface {
	Mirror(ctx context.Context, doc entities.RenderedDocument, record entities.BookRecord) error
}

// NamedMirror pairs a mirror with the name used in sink error reports.
type NamedMirror struct {
	Name   string
	Mirror Mirror
}

// RunRecorder persists run summaries for history. Optional.
type RunRecorder interface {
	RecordRun(run *entities.Run) error
}

// MentionOutcome is one mention's result, in extraction order.
type MentionOutcome struct {
	Position   int                       `json:"position"`
	Mention    entities.RawMention       `json:"mention"`
	Record     entities.BookRecord       `json:"record"`
	Identity   entities.DocumentIdentity `json:"identity"`
	Status     entities.OutcomeStatus    `json:"status"`
	Detail     string                    `json:"detail,omitempty"`
	SinkErrors []string                  `json:"sink_errors,omitempty"`
}

// RunSummary reports the whole run: every outcome plus counts, so callers
// can see partial success without digging through logs.
type RunSummary struct {
	RunID     string           `json:"run_id"`
	ImageName string           `json:"image_name,omitempty"`
	Outcomes  []MentionOutcome `json:"outcomes"`
	Enriched  int              `json:"enriched"`
	Degraded  int              `json:"degraded"`
	Failed    int              `json:"failed"`
	Duration  time.Duration    `json:"duration"`
}

// Processor wires the pipeline stages together: extract, enrich, resolve,
// render, write, mirror. One Processor serves many runs; per-run state
// (slug tracker, outcome list) is freshly allocated inside ProcessImage.
type Processor struct {
	extractor vision.Extractor
	enricher  Enricher
	renderer  *markdown.Renderer
	local     LocalWriter
	mirrors   []NamedMirror
	recorder  RunRecorder
	outputDir string
	workers   int
}

func NewProcessor(
	extractor vision.Extractor,
	enricher Enricher,
	renderer *markdown.Renderer,
	local LocalWriter,
	mirrors []NamedMirror,
	recorder RunRecorder,
	cfg config.Pipeline,
) *Processor {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	return &Processor{
		extractor: extractor,
		enricher:  enricher,
		renderer:  renderer,
		local:     local,
		mirrors:   mirrors,
		recorder:  recorder,
		outputDir: cfg.OutputDir,
		workers:   workers,
	}
}

// ProcessImage runs the pipeline for one screenshot. Extraction failure
// aborts the run; everything after degrades per mention. Output order
// always follows extraction order.
func (p *Processor) ProcessImage(ctx context.Context, image vision.Image, trigger entities.RunTrigger) (*RunSummary, error) {
	start := time.Now()

	mentions, err := p.extractor.Extract(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	log.Printf("pipeline: extracted %d mentions from %s", len(mentions), image.Name)

	summary := &RunSummary{
		RunID:     uuid.New().String(),
		ImageName: image.Name,
		Outcomes:  make([]MentionOutcome, len(mentions)),
	}

	records := p.enrichAll(ctx, mentions)

	resolver := identity.NewResolver(p.outputDir)
	for i, record := range records {
		outcome := MentionOutcome{
			Position: i,
			Mention:  mentions[i],
			Record:   record,
			Identity: resolver.Resolve(record),
		}

		doc := p.renderer.Render(record, outcome.Identity)
		if err := p.local.Write(doc); err != nil {
			outcome.Status = entities.OutcomeFailed
			outcome.Detail = err.Error()
			summary.Failed++
			summary.Outcomes[i] = outcome
			log.Printf("pipeline: write failed for %s: %v", outcome.Identity.Slug, err)
			continue
		}

		if record.Enriched() {
			outcome.Status = entities.OutcomeEnriched
			summary.Enriched++
		} else {
			outcome.Status = entities.OutcomeDegraded
			summary.Degraded++
		}

		for _, mirror := range p.mirrors {
			if err := mirror.Mirror.Mirror(ctx, doc, record); err != nil {
				outcome.SinkErrors = append(outcome.SinkErrors, fmt.Sprintf("%s: %v", mirror.Name, err))
				log.Printf("pipeline: %s mirror failed for %s: %v", mirror.Name, outcome.Identity.Slug, err)
			}
		}
		summary.Outcomes[i] = outcome
	}

	summary.Duration = time.Since(start)
	p.record(summary, trigger)
	return summary, nil
}

// enrichAll fans enrichment across a bounded worker pool and returns
// records indexed by extraction position. Each call is independent, so
// completion order does not matter; the slot write restores ordering.
func (p *Processor) enrichAll(ctx context.Context, mentions []entities.RawMention) []entities.BookRecord {
	records := make([]entities.BookRecord, len(mentions))

	if p.workers <= 1 || len(mentions) <= 1 {
		for i, mention := range mentions {
			records[i] = p.enricher.Enrich(ctx, mention)
		}
		return records
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = p.enricher.Enrich(ctx, mentions[i])
			}
		}()
	}
	for i := range mentions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return records
}

func (p *Processor) record(summary *RunSummary, trigger entities.RunTrigger) {
	if p.recorder == nil {
		return
	}
	run := &entities.Run{
		UUID:          summary.RunID,
		Trigger:       trigger,
		ImageName:     summary.ImageName,
		BooksTotal:    len(summary.Outcomes),
		BooksEnriched: summary.Enriched,
		BooksDegraded: summary.Degraded,
		BooksFailed:   summary.Failed,
		DurationMS:    summary.Duration.Milliseconds(),
	}
	for _, outcome := range summary.Outcomes {
		detail := outcome.Detail
		if len(outcome.SinkErrors) > 0 {
			if detail != "" {
				detail += "; "
			}
			detail += strings.Join(outcome.SinkErrors, "; ")
		}
		run.Books = append(run.Books, entities.RunBook{
			Position: outcome.Position,
			Title:    outcome.Record.Title,
			Author:   outcome.Record.Author,
			Status:   outcome.Status,
			Slug:     outcome.Identity.Slug,
			Filepath: outcome.Identity.Filepath,
			Detail:   detail,
		})
	}
	if err := p.recorder.RecordRun(run); err != nil {
		log.Printf("pipeline: run history save failed: %v", err)
	}
}

// RefreshFile re-enriches one previously written document in place. The
// file keeps its existing name: re-deriving the slug would collapse
// collision-suffixed files onto each other. Returns false when the lookup
// degraded and the document was left untouched.
func (p *Processor) RefreshFile(ctx context.Context, path string) (bool, error) {
	record, _, err := markdown.ParseFile(path)
	if err != nil {
		return false, err
	}

	mention := entities.RawMention{
		Title:         record.Title,
		Author:        record.Author,
		ReadingStatus: record.ReadingStatus,
	}
	fresh := p.enricher.Enrich(ctx, mention)
	if !fresh.Enriched() {
		return false, nil
	}
	if !record.DateAdded.IsZero() {
		fresh.DateAdded = record.DateAdded
	}

	slug := strings.TrimSuffix(filepath.Base(path), ".md")
	doc := p.renderer.Render(fresh, entities.DocumentIdentity{Slug: slug, Filepath: path})
	if err := p.local.Write(doc); err != nil {
		return false, fmt.Errorf("rewrite document: %w", err)
	}
	return true, nil
}

// ListDocuments returns the markdown documents currently in the output
// directory, sorted by name.
func (p *Processor) ListDocuments() ([]string, error) {
	entries, err := os.ReadDir(p.outputDir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		paths = append(paths, filepath.Join(p.outputDir, entry.Name()))
	}
	return paths, nil
}
