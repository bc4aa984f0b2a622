package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Record is the gorm model backing the persistent audit trail. Violations
// are stored JSON-encoded; interceptor names comma-joined.
type Record struct {
	ID           uint      `gorm:"primaryKey"`
	CreatedAt    time.Time `gorm:"index"`
	Timestamp    time.Time
	RequestID    string `gorm:"index"`
	Provider     string
	Model        string
	SessionID    string `gorm:"index"`
	Interceptors string
	Violations   string
	Outcome      string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	DurationMS   int64
}

// TableName keeps the table name stable across gorm naming changes.
func (Record) TableName() string {
	return "audit_records"
}

// SQLiteSink appends audit entries to a local sqlite database.
type SQLiteSink struct {
	db *gorm.DB
}

// NewSQLiteSink opens (or creates) the database at path and migrates the
// audit table.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Write persists the entry. Concurrent calls are serialized by sqlite.
func (s *SQLiteSink) Write(ctx context.Context, entry Entry) error {
	violations, err := json.Marshal(entry.Violations)
	if err != nil {
		return fmt.Errorf("failed to encode violations: %w", err)
	}

	interceptors := make([]string, len(entry.Interceptors))
	for i, name := range entry.Interceptors {
		interceptors[i] = string(name)
	}

	record := Record{
		Timestamp:    entry.Timestamp,
		RequestID:    entry.RequestID,
		Provider:     string(entry.Provider),
		Model:        entry.Model,
		SessionID:    entry.SessionID,
		Interceptors: strings.Join(interceptors, ","),
		Violations:   string(violations),
		Outcome:      string(entry.Outcome),
		InputTokens:  entry.InputTokens,
		OutputTokens: entry.OutputTokens,
		CostUSD:      entry.CostUSD,
		DurationMS:   entry.DurationMS,
	}

	return s.db.WithContext(ctx).Create(&record).Error
}
