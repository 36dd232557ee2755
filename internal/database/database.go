package database

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate all entities
	err = db.AutoMigrate(
		&entities.CatalogLookup{},
		&entities.Run{},
		&entities.RunBook{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetLookup fetches a cached catalog search. A miss returns (nil, nil) so
// callers fall through to the network without error handling gymnastics.
func (d *Database) GetLookup(queryKey string) (*entities.CatalogLookup, error) {
	var lookup entities.CatalogLookup
	err := d.DB.Where("query_key = ?", queryKey).First(&lookup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// UpdateColumn keeps UpdatedAt untouched; it marks cache freshness.
	if err := d.DB.Model(&lookup).UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error; err != nil {
		log.Printf("lookup cache: hit count update failed: %v", err)
	}
	return &lookup, nil
}

// PutLookup stores or replaces the cached response for a query.
func (d *Database) PutLookup(queryKey, response string) error {
	var existing entities.CatalogLookup
	err := d.DB.Where("query_key = ?", queryKey).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.DB.Create(&entities.CatalogLookup{
			QueryKey: queryKey,
			Response: response,
		}).Error
	}
	if err != nil {
		return err
	}

	existing.Response = response
	return d.DB.Save(&existing).Error
}

// RecordRun persists a run summary with its per-book outcomes.
func (d *Database) RecordRun(run *entities.Run) error {
	return d.DB.Create(run).Error
}

// RecentRuns returns the newest runs with their books in extraction order.
func (d *Database) RecentRuns(limit int) ([]entities.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []entities.Run
	err := d.DB.
		Preload("Books", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// GetRunByUUID fetches one run with its books.
func (d *Database) GetRunByUUID(runUUID string) (*entities.Run, error) {
	var run entities.Run
	err := d.DB.
		Preload("Books", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("uuid = ?", runUUID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
