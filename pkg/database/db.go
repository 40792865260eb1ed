package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arnavshah/assignment-engine-go/pkg/config"
)

// APIKey represents the api_keys table. Name holds the congregation the key was issued to.
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	KeyPreview string     `json:"key_preview"`
	Name       string     `gorm:"not null" json:"name"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`

	// DeletedAt marks a revoked key; the signature stays valid so the row must remain.
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// APIUsage represents the api_usage table
type APIUsage struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	KeyID         uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date          string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount  int    `gorm:"default:0" json:"request_count"`
	TotalParts    int    `gorm:"default:0" json:"total_parts"`
	TotalStudents int    `gorm:"default:0" json:"total_students"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AssignmentRecord is one persisted assignment, the source of future history windows
type AssignmentRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Congregation string    `gorm:"index:idx_congregation_week;not null" json:"congregation"`
	RunID        string    `gorm:"index;not null" json:"run_id"`
	WeekOf       time.Time `gorm:"index:idx_congregation_week;not null" json:"week_of"`
	PartID       string    `gorm:"not null" json:"part_id"`
	PartType     string    `json:"part_type"`
	PartOrder    int       `json:"part_order"`
	StudentID    string    `gorm:"index;not null" json:"student_id"`
	AssistantID  *string   `gorm:"index" json:"assistant_id,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// InitDB opens postgres when a database URL is configured, sqlite otherwise, and migrates the schema
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if cfg.URL != "" {
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		})
		gormCfg.PrepareStmt = false
	} else {
		dbPath := cfg.Path
		if dbPath == "" {
			dbPath = "assignments.db"
		}
		dialector = sqlite.Open(dbPath)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&APIKey{}, &APIUsage{}, &MasterUser{}, &AssignmentRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
