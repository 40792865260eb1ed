package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageDate is the day bucket usage is recorded under
func UsageDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RecordUsage counts one request against keyID using a single upsert (supported by both Postgres and SQLite)
func RecordUsage(ctx context.Context, db *gorm.DB, keyID uint, date string, parts, students int) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":  gorm.Expr("request_count + ?", 1),
			"total_parts":    gorm.Expr("total_parts + ?", parts),
			"total_students": gorm.Expr("total_students + ?", students),
		}),
	}).Create(&APIUsage{
		KeyID:         keyID,
		Date:          date,
		RequestCount:  1,
		TotalParts:    parts,
		TotalStudents: students,
	}).Error
}

// RequestsOn returns how many requests keyID made on date
func RequestsOn(ctx context.Context, db *gorm.DB, keyID uint, date string) (int, error) {
	var usage APIUsage
	err := db.WithContext(ctx).Where("key_id = ? AND date = ?", keyID, date).Limit(1).Find(&usage).Error
	return usage.RequestCount, err
}

// UsageHistory returns the most recent days of usage for keyID, newest first
func UsageHistory(ctx context.Context, db *gorm.DB, keyID uint, days int) ([]APIUsage, error) {
	var usage []APIUsage
	err := db.WithContext(ctx).Where("key_id = ?", keyID).Order("date desc").Limit(days).Find(&usage).Error
	return usage, err
}
