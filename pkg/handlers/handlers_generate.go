package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arnavshah/assignment-engine-go/pkg/database"
	apperrors "github.com/arnavshah/assignment-engine-go/pkg/errors"
	"github.com/arnavshah/assignment-engine-go/pkg/metrics"
	"github.com/arnavshah/assignment-engine-go/pkg/models"
	"github.com/arnavshah/assignment-engine-go/pkg/scheduler"
)

const weekLayout = "2006-01-02"

func parseWeek(raw string) (time.Time, error) {
	t, err := time.Parse(weekLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "week_of must be a YYYY-MM-DD date")
	}
	return t, nil
}

// newScheduler builds an engine configured from the service settings and request options
func (h *Handler) newScheduler(asOf time.Time, opts models.GenerateOptions) *scheduler.Scheduler {
	return scheduler.NewScheduler(scheduler.Options{
		Config:                h.Config.Engine.Scheduler(),
		AsOf:                  asOf,
		LenientHistory:        opts.LenientHistory,
		ExclusiveRoles:        opts.ExclusiveRoles,
		AllowRepeatAssistant:  opts.AllowRepeatAssistant,
		PreferFamilyAssistant: opts.PreferFamilyAssistant,
		PrimariesMayAssist:    opts.PrimariesMayAssist,
		ExcludeStudentIDs:     opts.ExcludeStudentIDs,
		Logger:                h.Logger,
	})
}

// historiesFor returns the supplied windows, or loads them from stored runs when none were sent
func (h *Handler) historiesFor(ctx context.Context, congregation string, roster []models.Student, supplied map[string]models.HistoryWindow, weekOf time.Time) (map[string]models.HistoryWindow, error) {
	if len(supplied) > 0 {
		return supplied, nil
	}
	ids := make([]string, 0, len(roster))
	for _, s := range roster {
		ids = append(ids, s.ID)
	}
	return database.HistoryWindows(ctx, h.DB, congregation, ids, weekOf, h.Config.Engine.Scheduler().HistoryWeeks)
}

// generate runs the engine for one request and persists the result when asked
func (h *Handler) generate(ctx context.Context, congregation string, input models.GenerateInput) (models.GenerateResponse, error) {
	weekOf, err := parseWeek(input.WeekOf)
	if err != nil {
		h.Metrics.ObserveFailure(metrics.OutcomeInvalid)
		return models.GenerateResponse{}, err
	}

	histories, err := h.historiesFor(ctx, congregation, input.Roster, input.Histories, weekOf)
	if err != nil {
		h.Metrics.ObserveFailure(metrics.OutcomeError)
		return models.GenerateResponse{}, err
	}

	seed := time.Now().UnixNano()
	if input.Seed != nil {
		seed = *input.Seed
	}

	s := h.newScheduler(weekOf, input.Options)
	start := time.Now()
	result, err := s.Generate(input.Program, input.Roster, histories, seed)
	if err != nil {
		h.Metrics.ObserveFailure(metrics.OutcomeInvalid)
		return models.GenerateResponse{}, err
	}

	fairness := scheduler.FairnessIndex(scheduler.ProjectedCounts(input.Roster, histories, result))
	h.Metrics.ObserveRun(result, fairness, time.Since(start))

	resp := models.GenerateResponse{
		RunID:         uuid.NewString(),
		WeekOf:        input.WeekOf,
		Seed:          seed,
		Assignments:   result.Assignments,
		Unresolved:    result.Unresolved,
		Stats:         result.Stats,
		FairnessScore: fairness,
		Violations:    s.Validate(input.Program, input.Roster, result.Assignments),
	}

	if input.Persist {
		if err := database.SaveAssignments(ctx, h.DB, congregation, resp.RunID, weekOf, input.Program, result); err != nil {
			return models.GenerateResponse{}, err
		}
		resp.Persisted = true
	}

	h.Logger.Info("assignments generated",
		zap.String("congregation", congregation),
		zap.String("run_id", resp.RunID),
		zap.String("week_of", input.WeekOf),
		zap.Int64("seed", seed),
		zap.Int("assigned", len(result.Assignments)),
		zap.Int("unresolved", len(result.Unresolved)),
		zap.Float64("fairness", fairness),
	)
	return resp, nil
}

// Generate handles the JSON generation request
func (h *Handler) Generate(c *gin.Context) {
	var input models.GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, err := h.generate(c.Request.Context(), c.GetString(ctxCongregation), input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.RecordUsage(c, len(input.Program), len(input.Roster))
	c.JSON(http.StatusOK, resp)
}

// Check re-validates a set of assignments an operator edited by hand
func (h *Handler) Check(c *gin.Context) {
	var input models.CheckInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	violations := h.newScheduler(time.Time{}, input.Options).Validate(input.Program, input.Roster, input.Assignments)
	c.JSON(http.StatusOK, gin.H{
		"valid":      len(violations) == 0,
		"violations": violations,
	})
}

// Simulate reports how often each pool member would win one part over repeated draws
func (h *Handler) Simulate(c *gin.Context) {
	var input models.SimulateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}
	weekOf, err := parseWeek(input.WeekOf)
	if err != nil {
		respondError(c, err)
		return
	}
	histories, err := h.historiesFor(c.Request.Context(), c.GetString(ctxCongregation), input.Pool, input.Histories, weekOf)
	if err != nil {
		respondError(c, err)
		return
	}

	trials := input.Trials
	if trials == 0 {
		trials = 1000
	}
	seed := time.Now().UnixNano()
	if input.Seed != nil {
		seed = *input.Seed
	}

	res := h.newScheduler(weekOf, models.GenerateOptions{}).Simulate(input.Part, input.Pool, histories, trials, seed)
	c.JSON(http.StatusOK, res)
}
