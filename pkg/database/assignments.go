package database

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// SaveAssignments stores every assignment of result under runID in one transaction
func SaveAssignments(ctx context.Context, db *gorm.DB, congregation, runID string, weekOf time.Time, program []models.Part, result models.GenerationResult) error {
	if len(result.Assignments) == 0 {
		return nil
	}

	parts := make(map[string]models.Part, len(program))
	for _, p := range program {
		parts[p.ID] = p
	}

	records := make([]AssignmentRecord, 0, len(result.Assignments))
	for _, a := range result.Assignments {
		part := parts[a.PartID]
		records = append(records, AssignmentRecord{
			Congregation: congregation,
			RunID:        runID,
			WeekOf:       weekOf.UTC(),
			PartID:       a.PartID,
			PartType:     string(part.Type),
			PartOrder:    part.Order,
			StudentID:    a.StudentID,
			AssistantID:  a.AssistantID,
			Status:       string(a.Status),
		})
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(records, 100).Error
	})
}

// HistoryWindows builds a window for each student from the congregation's records.
// Records from asOf onwards are ignored. Counts cover the last weeks weeks, while the
// last assignment date may be older. Students without records get an empty window.
func HistoryWindows(ctx context.Context, db *gorm.DB, congregation string, studentIDs []string, asOf time.Time, weeks int) (map[string]models.HistoryWindow, error) {
	windows := make(map[string]models.HistoryWindow, len(studentIDs))
	for _, id := range studentIDs {
		windows[id] = models.HistoryWindow{StudentID: id}
	}
	if len(studentIDs) == 0 {
		return windows, nil
	}

	var records []AssignmentRecord
	err := db.WithContext(ctx).
		Select("week_of", "student_id", "assistant_id").
		Where("congregation = ? AND week_of < ?", congregation, asOf.UTC()).
		Where(db.Where("student_id IN ?", studentIDs).Or("assistant_id IN ?", studentIDs)).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	windowStart := asOf.UTC().AddDate(0, 0, -7*weeks)
	touch := func(id string, weekOf time.Time) {
		w, ok := windows[id]
		if !ok {
			return
		}
		if !weekOf.Before(windowStart) {
			w.AssignmentCountRecent++
		}
		if w.LastAssignmentDate == nil || weekOf.After(*w.LastAssignmentDate) {
			last := weekOf
			w.LastAssignmentDate = &last
		}
		windows[id] = w
	}
	for _, r := range records {
		touch(r.StudentID, r.WeekOf)
		if r.AssistantID != nil {
			touch(*r.AssistantID, r.WeekOf)
		}
	}
	return windows, nil
}

// DeleteRun discards a persisted run and reports how many records were removed
func DeleteRun(ctx context.Context, db *gorm.DB, congregation, runID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("congregation = ? AND run_id = ?", congregation, runID).
		Delete(&AssignmentRecord{})
	return res.RowsAffected, res.Error
}

// RunAssignments returns the records of one run in program order
func RunAssignments(ctx context.Context, db *gorm.DB, congregation, runID string) ([]AssignmentRecord, error) {
	var records []AssignmentRecord
	err := db.WithContext(ctx).
		Where("congregation = ? AND run_id = ?", congregation, runID).
		Order("part_order asc").
		Find(&records).Error
	return records, err
}

// StudentIDs lists every student the congregation has records for, as primary or assistant
func StudentIDs(ctx context.Context, db *gorm.DB, congregation string) ([]string, error) {
	var primaries, assistants []string
	q := db.WithContext(ctx).Model(&AssignmentRecord{}).Where("congregation = ?", congregation).Session(&gorm.Session{})
	if err := q.Distinct().Pluck("student_id", &primaries).Error; err != nil {
		return nil, err
	}
	if err := q.Where("assistant_id IS NOT NULL").Distinct().Pluck("assistant_id", &assistants).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(primaries)+len(assistants))
	ids := make([]string, 0, len(primaries)+len(assistants))
	for _, id := range append(primaries, assistants...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
