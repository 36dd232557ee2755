package identity

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

var nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lower-cases, replaces runs of non-alphanumerics with a single
// hyphen, and trims hyphens from both ends.
func slugify(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// authorSurname takes the last whitespace-delimited token of the author.
func authorSurname(author string) string {
	fields := strings.Fields(author)
	if len(fields) == 0 {
		return ""
	}
	return slugify(fields[len(fields)-1])
}

// Slug derives the base document slug, {author_surname}_{title_slug}.
// Pure: equal (author, title) pairs always produce the same slug,
// regardless of enrichment outcome.
func Slug(author, title string) string {
	surname := authorSurname(author)
	if surname == "" {
		surname = "unknown"
	}
	titleSlug := slugify(title)
	if titleSlug == "" {
		titleSlug = "untitled"
	}
	return surname + "_" + titleSlug
}

// Resolver issues document identities for one run. Distinct records that
// normalize to the same slug get -2, -3, ... suffixes; re-resolving the
// same (author, title) pair returns the identity already issued. Safe for
// concurrent use; allocate a fresh Resolver per run.
type Resolver struct {
	outputDir string

	mu       sync.Mutex
	assigned map[string]string // (author, title) pair -> issued slug
	taken    map[string]int    // base slug -> issue count
}

func NewResolver(outputDir string) *Resolver {
	return &Resolver{
		outputDir: outputDir,
		assigned:  make(map[string]string),
		taken:     make(map[string]int),
	}
}

// Resolve derives the identity for a record. Never fails; silently
// overwriting two distinct books would be a correctness defect, so
// collisions within the run are suffixed instead.
func (r *Resolver) Resolve(record entities.BookRecord) entities.DocumentIdentity {
	pairKey := record.Author + "\x00" + record.Title

	r.mu.Lock()
	defer r.mu.Unlock()

	if slug, ok := r.assigned[pairKey]; ok {
		return r.identity(slug)
	}

	base := Slug(record.Author, record.Title)
	r.taken[base]++
	slug := base
	if n := r.taken[base]; n > 1 {
		slug = fmt.Sprintf("%s-%d", base, n)
	}
	r.assigned[pairKey] = slug
	return r.identity(slug)
}

func (r *Resolver) identity(slug string) entities.DocumentIdentity {
	return entities.DocumentIdentity{
		Slug:     slug,
		Filepath: filepath.Join(r.outputDir, slug+".md"),
	}
}
