package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/assignment-engine-go/pkg/database"
	apperrors "github.com/arnavshah/assignment-engine-go/pkg/errors"
	"github.com/arnavshah/assignment-engine-go/pkg/scheduler"
)

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	apiKeyRaw, exists := c.Get(ctxAPIKey)
	if !exists {
		respondError(c, apperrors.Clone(apperrors.ErrInternal, "API key context missing"))
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	usage, err := database.UsageHistory(c.Request.Context(), h.DB, apiKey.ID, 30)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "could not fetch usage details"))
		return
	}

	// Calculate totals
	var totalRequests, totalParts, totalStudents int64
	for _, u := range usage {
		totalRequests += int64(u.RequestCount)
		totalParts += int64(u.TotalParts)
		totalStudents += int64(u.TotalStudents)
	}

	c.JSON(http.StatusOK, gin.H{
		"congregation":  apiKey.Name,
		"rate_limit":    apiKey.RateLimit,
		"usage_history": usage,
		"totals": gin.H{
			"requests": totalRequests,
			"parts":    totalParts,
			"students": totalStudents,
		},
	})
}

// History returns the stored history windows of the caller's congregation as of a date
func (h *Handler) History(c *gin.Context) {
	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("as_of"); raw != "" {
		t, err := parseWeek(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		asOf = t
	}

	weeks := h.Config.Engine.Scheduler().HistoryWeeks
	if raw := c.Query("weeks"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, apperrors.Clone(apperrors.ErrValidation, "weeks must be a positive integer"))
			return
		}
		weeks = n
	}

	ctx := c.Request.Context()
	congregation := c.GetString(ctxCongregation)

	ids := c.QueryArray("student_id")
	if len(ids) == 0 {
		var err error
		if ids, err = database.StudentIDs(ctx, h.DB, congregation); err != nil {
			respondError(c, err)
			return
		}
	}

	windows, err := database.HistoryWindows(ctx, h.DB, congregation, ids, asOf, weeks)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"as_of":        asOf.Format(weekLayout),
		"weeks":        weeks,
		"histories":    windows,
		"distribution": scheduler.DistributionReport(ids, windows),
	})
}

// GetRun returns the stored assignments of one run
func (h *Handler) GetRun(c *gin.Context) {
	records, err := database.RunAssignments(c.Request.Context(), h.DB, c.GetString(ctxCongregation), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(records) == 0 {
		respondError(c, apperrors.Clone(apperrors.ErrNotFound, "run not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": c.Param("id"), "assignments": records})
}

// DeleteRun discards a stored run so it no longer counts towards history
func (h *Handler) DeleteRun(c *gin.Context) {
	n, err := database.DeleteRun(c.Request.Context(), h.DB, c.GetString(ctxCongregation), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if n == 0 {
		respondError(c, apperrors.Clone(apperrors.ErrNotFound, "run not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Run deleted", "deleted": n})
}
