// Package localstore keeps counters, submissions, results and artifacts in a
// single SQLite file through GORM. It serves single-host deployments and tests.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

type batchCounterRow struct {
	BatchID      string `gorm:"primaryKey"`
	SuccessCount int64  `gorm:"not null;default:0"`
	FailureCount int64  `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

func (batchCounterRow) TableName() string { return "batch_counters" }

type itemDispositionRow struct {
	BatchID     string `gorm:"primaryKey"`
	ItemID      string `gorm:"primaryKey"`
	Disposition string `gorm:"not null"`
	RecordedAt  time.Time
}

func (itemDispositionRow) TableName() string { return "item_dispositions" }

type jobSubmissionRow struct {
	ID           string `gorm:"primaryKey"`
	BatchID      string `gorm:"index:idx_job_submissions_batch;not null"`
	JobID        string `gorm:"uniqueIndex;not null"`
	JobName      string `gorm:"uniqueIndex;not null"`
	InputKey     string `gorm:"not null"`
	OutputPrefix string `gorm:"not null"`
	Status       string `gorm:"index;not null"`
	ErrorMessage *string
	OutputKey    *string
	SubmittedAt  time.Time `gorm:"index:idx_job_submissions_batch"`
	UpdatedAt    time.Time
}

func (jobSubmissionRow) TableName() string { return "job_submissions" }

type resultRecordRow struct {
	BatchID    string   `gorm:"primaryKey"`
	ItemID     string   `gorm:"primaryKey"`
	Headline   string   `gorm:"not null"`
	Summary    string   `gorm:"not null"`
	Byline     string   `gorm:"not null"`
	ArticleURL string   `gorm:"not null"`
	Authors    []string `gorm:"serializer:json"`
	ArticleID  string   `gorm:"not null"`
	LoadedAt   time.Time
}

func (resultRecordRow) TableName() string { return "result_records" }

type blobRow struct {
	ObjectKey string `gorm:"primaryKey"`
	Data      []byte
	UpdatedAt time.Time
}

func (blobRow) TableName() string { return "blobs" }

// Open opens the SQLite database at path. A single connection serializes
// writers so every transaction is atomic with respect to the others.
func Open(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates the tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&batchCounterRow{},
		&itemDispositionRow{},
		&jobSubmissionRow{},
		&resultRecordRow{},
		&blobRow{},
	)
}

// Close closes the underlying connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
