package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Vision
		Catalog
		Pipeline
		Raindrop
		Vault
		VaultSync
		Database
		Audit
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Vision struct {
		Provider  string // currently only "anthropic"
		APIKey    string
		Model     string
		MaxTokens int
		Timeout   time.Duration
	}
	Catalog struct {
		BaseURL           string
		Timeout           time.Duration
		MatchThreshold    float64 // candidates scoring below this are treated as no-match
		MaxResults        int
		RequestsPerSecond float64
		MaxRetries        int
		CacheEnabled      bool
		CacheTTL          time.Duration
	}
	Pipeline struct {
		OutputDir         string
		Workers           int // bounded concurrent enrichment calls
		FrontmatterFields []string
	}
	Raindrop struct {
		Enabled      bool
		Token        string
		CollectionID int64
		Tags         []string
	}
	Vault struct {
		Enabled       bool
		Dir           string
		IndexEnabled  bool
		IndexFilename string
	}
	VaultSync struct {
		Enabled  bool
		Schedule string // Cron format: "0 * * * *" = hourly
	}
	Database struct {
		Path string
	}
	Audit struct {
		Enabled bool
		Dir     string
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
)

var (
	ErrMissingAPIKey        = errors.New("config: ANTHROPIC_API_KEY is required for screenshot processing")
	ErrMissingOutputDir     = errors.New("config: OUTPUT_DIR must not be empty")
	ErrMissingRaindropToken = errors.New("config: RAINDROP_TOKEN is required when the raindrop sink is enabled")
	ErrMissingVaultDir      = errors.New("config: VAULT_DIR is required when the vault sink is enabled")
)

// splitList parses a comma-separated env value into trimmed entries.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 7860)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)

	// Vision extraction defaults
	v.SetDefault("vision_provider", "anthropic")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("vision_model", "claude-3-5-sonnet-20241022")
	v.SetDefault("vision_max_tokens", 4000)
	v.SetDefault("vision_timeout", "60s")

	// Catalog defaults
	v.SetDefault("catalog_base_url", "https://openlibrary.org")
	v.SetDefault("catalog_timeout", "10s")
	v.SetDefault("catalog_match_threshold", 0.5)
	v.SetDefault("catalog_max_results", 5)
	v.SetDefault("catalog_requests_per_second", 2.0)
	v.SetDefault("catalog_max_retries", 3)
	v.SetDefault("catalog_cache_enabled", true)
	v.SetDefault("catalog_cache_ttl", "720h") // 30 days

	// Pipeline defaults
	v.SetDefault("output_dir", "./books")
	v.SetDefault("pipeline_workers", 4)
	v.SetDefault("frontmatter_fields", DefaultFrontmatterFields)

	// Raindrop sink defaults
	v.SetDefault("raindrop_enabled", false)
	v.SetDefault("raindrop_token", "")
	v.SetDefault("raindrop_collection_id", 0)
	v.SetDefault("raindrop_tags", "books,fable")

	// Vault sink defaults
	v.SetDefault("vault_enabled", false)
	v.SetDefault("vault_dir", "")
	v.SetDefault("vault_index_enabled", true)
	v.SetDefault("vault_index_filename", "Book Index.md")
	v.SetDefault("vault_sync_enabled", false)
	v.SetDefault("vault_sync_schedule", "0 * * * *") // Hourly at :00

	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("audit_enabled", false)
	v.SetDefault("audit_dir", "./audit")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Vision: Vision{
			Provider:  v.GetString("VISION_PROVIDER"),
			APIKey:    v.GetString("ANTHROPIC_API_KEY"),
			Model:     v.GetString("VISION_MODEL"),
			MaxTokens: v.GetInt("VISION_MAX_TOKENS"),
			Timeout:   v.GetDuration("VISION_TIMEOUT"),
		},
		Catalog: Catalog{
			BaseURL:           v.GetString("CATALOG_BASE_URL"),
			Timeout:           v.GetDuration("CATALOG_TIMEOUT"),
			MatchThreshold:    v.GetFloat64("CATALOG_MATCH_THRESHOLD"),
			MaxResults:        v.GetInt("CATALOG_MAX_RESULTS"),
			RequestsPerSecond: v.GetFloat64("CATALOG_REQUESTS_PER_SECOND"),
			MaxRetries:        v.GetInt("CATALOG_MAX_RETRIES"),
			CacheEnabled:      v.GetBool("CATALOG_CACHE_ENABLED"),
			CacheTTL:          v.GetDuration("CATALOG_CACHE_TTL"),
		},
		Pipeline: Pipeline{
			OutputDir:         v.GetString("OUTPUT_DIR"),
			Workers:           v.GetInt("PIPELINE_WORKERS"),
			FrontmatterFields: splitList(v.GetString("FRONTMATTER_FIELDS")),
		},
		Raindrop: Raindrop{
			Enabled:      v.GetBool("RAINDROP_ENABLED"),
			Token:        v.GetString("RAINDROP_TOKEN"),
			CollectionID: v.GetInt64("RAINDROP_COLLECTION_ID"),
			Tags:         splitList(v.GetString("RAINDROP_TAGS")),
		},
		Vault: Vault{
			Enabled:       v.GetBool("VAULT_ENABLED"),
			Dir:           v.GetString("VAULT_DIR"),
			IndexEnabled:  v.GetBool("VAULT_INDEX_ENABLED"),
			IndexFilename: v.GetString("VAULT_INDEX_FILENAME"),
		},
		VaultSync: VaultSync{
			Enabled:  v.GetBool("VAULT_SYNC_ENABLED"),
			Schedule: v.GetString("VAULT_SYNC_SCHEDULE"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Audit: Audit{
			Enabled: v.GetBool("AUDIT_ENABLED"),
			Dir:     v.GetString("AUDIT_DIR"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
	}
}

// ValidateProcessing checks the settings every screenshot run needs.
// Sink-specific settings are checked only when that sink is enabled.
func (c *Config) ValidateProcessing() error {
	if c.Pipeline.OutputDir == "" {
		return ErrMissingOutputDir
	}
	if c.Vision.APIKey == "" {
		return ErrMissingAPIKey
	}
	return c.ValidateSinks()
}

// ValidateSinks checks credentials for whichever mirrors are enabled.
func (c *Config) ValidateSinks() error {
	if c.Raindrop.Enabled && c.Raindrop.Token == "" {
		return ErrMissingRaindropToken
	}
	if c.Vault.Enabled && c.Vault.Dir == "" {
		return ErrMissingVaultDir
	}
	return nil
}

// ValidateRefresh checks the settings the metadata refresh path needs.
// Refresh re-reads existing documents, so the vision key is not required.
func (c *Config) ValidateRefresh() error {
	if c.Pipeline.OutputDir == "" {
		return ErrMissingOutputDir
	}
	return nil
}
