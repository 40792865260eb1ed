package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
	"github.com/arnavshah/assignment-engine-go/pkg/scheduler"
)

// ValidateInput handles the JSON-based validation request
func (h *Handler) ValidateInput(c *gin.Context) {
	var input models.GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": bindError(err).Message,
		})
		return
	}

	weekOf, err := parseWeek(input.WeekOf)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "week_of must be a YYYY-MM-DD date"})
		return
	}

	// Without histories the server loads them from stored runs, so every student is covered.
	histories := input.Histories
	if len(histories) == 0 {
		histories = make(map[string]models.HistoryWindow, len(input.Roster))
		for _, s := range input.Roster {
			histories[s.ID] = models.HistoryWindow{StudentID: s.ID}
		}
	}
	if err := h.newScheduler(weekOf, input.Options).Preflight(input.Program, input.Roster, histories); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}

	rules := scheduler.DefaultRules()
	warnings := []string{}
	needAssistant := 0
	for _, p := range input.Program {
		rule, known := rules.Effective(p)
		if !known {
			warnings = append(warnings, fmt.Sprintf("part %s has unknown type %q; the least restrictive rule applies", p.ID, p.Type))
		}
		if rule.AssistantRequired {
			needAssistant++
		}
	}
	active := 0
	for _, s := range input.Roster {
		if s.Active {
			active++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"warnings": warnings,
		"stats": gin.H{
			"part_count":            len(input.Program),
			"student_count":         len(input.Roster),
			"active_students":       active,
			"parts_with_assistant":  needAssistant,
			"histories_from_server": len(input.Histories) == 0,
		},
	})
}
