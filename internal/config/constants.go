package config

// DefaultDatabasePath is the default path for the application database
// (catalog lookup cache and run history).
const DefaultDatabasePath = "./fableparser.db"

// DefaultFrontmatterFields is the recognized frontmatter field superset in
// its default render order. Fields absent on a record are omitted from the
// rendered document entirely.
const DefaultFrontmatterFields = "title,author,isbn,isbn_10,cover_url,open_library_id,source,date_added,status,reading_status,publisher,publish_year,pages"
