package entities

import "time"

// OutcomeStatus classifies how a single mention fared in a run.
type OutcomeStatus string

const (
	OutcomeEnriched OutcomeStatus = "enriched" // catalog match accepted
	OutcomeDegraded OutcomeStatus = "degraded" // written with mention fields only
	OutcomeFailed   OutcomeStatus = "failed"   // document could not be written
)

// RunTrigger records which surface started a run.
type RunTrigger string

const (
	TriggerCLI       RunTrigger = "cli"
	TriggerWeb       RunTrigger = "web"
	TriggerScheduler RunTrigger = "scheduler"
	TriggerTask      RunTrigger = "task"
)

// CatalogLookup caches one catalog search keyed by the normalized query,
// so repeated screenshots of the same shelf skip the network.
type CatalogLookup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	QueryKey  string    `gorm:"uniqueIndex;size:512" json:"query_key"`
	Response  string    `gorm:"type:text" json:"-"` // JSON-encoded []CandidateMatch
	HitCount  int       `gorm:"default:0" json:"hit_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CatalogLookup) TableName() string {
	return "catalog_lookups"
}

// Run is the persisted history row for one screenshot processing run.
type Run struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          string     `gorm:"uniqueIndex;size:36" json:"uuid"`
	Trigger       RunTrigger `gorm:"size:20" json:"trigger"`
	ImageName     string     `gorm:"size:512" json:"image_name,omitempty"`
	BooksTotal    int        `json:"books_total"`
	BooksEnriched int        `json:"books_enriched"`
	BooksDegraded int        `json:"books_degraded"`
	BooksFailed   int        `json:"books_failed"`
	DurationMS    int64      `json:"duration_ms"`
	Books         []RunBook  `gorm:"foreignKey:RunID" json:"books,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (Run) TableName() string {
	return "runs"
}

// RunBook is one mention's outcome within a run, in extraction order.
type RunBook struct {
	ID       uint          `gorm:"primaryKey" json:"id"`
	RunID    uint          `gorm:"index" json:"run_id"`
	Position int           `json:"position"`
	Title    string        `gorm:"size:512" json:"title"`
	Author   string        `gorm:"size:256" json:"author"`
	Status   OutcomeStatus `gorm:"size:20" json:"status"`
	Slug     string        `gorm:"size:512" json:"slug,omitempty"`
	Filepath string        `gorm:"size:1024" json:"filepath,omitempty"`
	Detail   string        `gorm:"type:text" json:"detail,omitempty"` // failure or sink error text
}

func (RunBook) TableName() string {
	return "run_books"
}
