package scheduler

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// Options configures a Scheduler. The zero value uses the default rules and weights.
type Options struct {
	Config Config
	// Rules replaces the default rule table; it must still cover every known part type.
	Rules RuleTable
	// AsOf is the date history recency is measured against. Zero means time.Now().
	AsOf time.Time
	// LenientHistory treats an active student without a history entry as never
	// assigned instead of failing the run.
	LenientHistory bool
	// ExclusiveRoles stops a student used as assistant from being primary later in the run.
	ExclusiveRoles bool
	// AllowRepeatAssistant lets one student assist in several parts of the run.
	AllowRepeatAssistant bool
	// PrimariesMayAssist lets a student who is primary on an earlier part assist a
	// later one. Ignored when ExclusiveRoles is set.
	PrimariesMayAssist    bool
	PreferFamilyAssistant bool
	ExcludeStudentIDs     []string
	Logger                *zap.Logger
}

// Scheduler generates assignments for one meeting program at a time. It holds no
// per-run state and is safe for concurrent use.
type Scheduler struct {
	opts       Options
	rules      RuleTable
	classifier *Classifier
	logger     *zap.Logger
}

// NewScheduler creates a new scheduler instance
func NewScheduler(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	opts.Config = opts.Config.withDefaults()
	return &Scheduler{
		opts:       opts,
		rules:      rules,
		classifier: NewClassifier(rules, logger),
		logger:     logger,
	}
}

// runState is what one Generate call accumulates
type runState struct {
	usedPrimary   map[string]bool
	usedAssistant map[string]bool
	excluded      map[string]bool
	assignments   []models.Assignment
	unresolved    []models.UnresolvedPart
}

// Generate assigns every part of program from roster. Parts without a candidate are
// reported in Unresolved; only malformed input returns an error.
func (s *Scheduler) Generate(program []models.Part, roster []models.Student, histories map[string]models.HistoryWindow, seed int64) (models.GenerationResult, error) {
	if err := s.validate(program, roster, histories); err != nil {
		return models.GenerationResult{}, err
	}

	now := s.opts.AsOf
	if now.IsZero() {
		now = time.Now()
	}

	parts := slices.Clone(program)
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].Order < parts[j].Order })

	st := &runState{
		usedPrimary:   make(map[string]bool),
		usedAssistant: make(map[string]bool),
		excluded:      make(map[string]bool),
		assignments:   make([]models.Assignment, 0, len(parts)),
		unresolved:    []models.UnresolvedPart{},
	}
	for _, id := range s.opts.ExcludeStudentIDs {
		st.excluded[id] = true
	}

	rng := rand.New(rand.NewSource(seed))
	selector := NewSelector(s.classifier, s.opts.Config, rng, now).PreferFamily(s.opts.PreferFamilyAssistant)

	for _, part := range parts {
		s.classifier.WarnUnknown(part)
		rule, _ := s.classifier.Rule(part)

		pool, skipped := st.primaryPool(roster, s.opts.ExclusiveRoles)
		primary, err := selector.SelectPrimary(part, pool, histories)
		if err != nil {
			st.unresolve(part, models.ReasonNoEligiblePrimary, append(rejectionDetails(err), skipped...))
			continue
		}
		st.usedPrimary[primary.ID] = true

		asg := models.Assignment{
			PartID:    part.ID,
			StudentID: primary.ID,
			Status:    models.StatusDesignated,
		}

		if rule.AssistantRequired {
			assistant, err := selector.SelectAssistant(part, primary, st.assistantPool(roster, s.opts.AllowRepeatAssistant, s.opts.PrimariesMayAssist && !s.opts.ExclusiveRoles), histories)
			switch {
			case err != nil:
				st.unresolve(part, models.ReasonMissingAssistant, rejectionDetails(err))
			case assistant != nil:
				id := assistant.ID
				asg.AssistantID = &id
				st.usedAssistant[id] = true
			}
		}

		st.assignments = append(st.assignments, asg)
	}

	result := models.GenerationResult{
		Assignments: st.assignments,
		Unresolved:  st.unresolved,
		Stats:       buildStats(st.assignments, st.unresolved, roster),
	}

	s.logger.Debug("generation finished",
		zap.Int64("seed", seed),
		zap.Int("parts", len(parts)),
		zap.Int("assigned", len(result.Assignments)),
		zap.Int("unresolved", len(result.Unresolved)),
	)
	return result, nil
}

// Preflight runs the structural checks of Generate without assigning anything
func (s *Scheduler) Preflight(program []models.Part, roster []models.Student, histories map[string]models.HistoryWindow) error {
	return s.validate(program, roster, histories)
}

// validate rejects structurally broken input before any assignment is attempted
func (s *Scheduler) validate(program []models.Part, roster []models.Student, histories map[string]models.HistoryWindow) error {
	if len(program) == 0 {
		return ErrEmptyProgram
	}
	if len(roster) == 0 {
		return ErrEmptyRoster
	}
	if err := s.rules.Check(); err != nil {
		return err
	}

	orders := make(map[int]string, len(program))
	ids := make(map[string]bool, len(program))
	for _, p := range program {
		if prev, ok := orders[p.Order]; ok {
			return fmt.Errorf("%w: %d used by %s and %s", ErrDuplicateOrder, p.Order, prev, p.ID)
		}
		orders[p.Order] = p.ID
		if ids[p.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicatePart, p.ID)
		}
		ids[p.ID] = true
		if !p.RequiredGender.Valid() {
			return fmt.Errorf("%w: %s has required_gender %q", ErrInvalidPartRule, p.ID, p.RequiredGender)
		}
		if !p.AssistantGenderRule.Valid() {
			return fmt.Errorf("%w: %s has assistant_gender_rule %q", ErrInvalidPartRule, p.ID, p.AssistantGenderRule)
		}
	}

	seen := make(map[string]bool, len(roster))
	for _, st := range roster {
		if seen[st.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateStudent, st.ID)
		}
		seen[st.ID] = true

		if !st.Active {
			continue
		}
		if _, ok := histories[st.ID]; ok {
			continue
		}
		if !s.opts.LenientHistory {
			return fmt.Errorf("%w: %s", ErrMissingHistory, st.ID)
		}
		s.logger.Warn("no history for student, treating as never assigned", zap.String("student_id", st.ID))
	}
	return nil
}

func (st *runState) primaryPool(roster []models.Student, exclusiveRoles bool) ([]models.Student, []string) {
	var used, excluded int
	pool := make([]models.Student, 0, len(roster))
	for _, s := range roster {
		switch {
		case st.excluded[s.ID]:
			excluded++
		case st.usedPrimary[s.ID], exclusiveRoles && st.usedAssistant[s.ID]:
			used++
		default:
			pool = append(pool, s)
		}
	}

	var skipped []string
	if used > 0 {
		skipped = append(skipped, fmt.Sprintf("%d students were already assigned this week", used))
	}
	if excluded > 0 {
		skipped = append(skipped, fmt.Sprintf("%d students were excluded by request", excluded))
	}
	return pool, skipped
}

// assistantPool drops excluded students and, unless primariesMayAssist, everyone already
// primary this run. The selector always skips the current part's primary.
func (st *runState) assistantPool(roster []models.Student, allowRepeat, primariesMayAssist bool) []models.Student {
	pool := make([]models.Student, 0, len(roster))
	for _, s := range roster {
		if st.excluded[s.ID] || (!primariesMayAssist && st.usedPrimary[s.ID]) {
			continue
		}
		if !allowRepeat && st.usedAssistant[s.ID] {
			continue
		}
		pool = append(pool, s)
	}
	return pool
}

func (st *runState) unresolve(part models.Part, reason models.UnresolvedReason, details []string) {
	st.unresolved = append(st.unresolved, models.UnresolvedPart{
		PartID:  part.ID,
		Order:   part.Order,
		Type:    part.Type,
		Reason:  reason,
		Details: details,
	})
}

func rejectionDetails(err error) []string {
	var nc *NoCandidateError
	if errors.As(err, &nc) {
		return slices.Clone(nc.Reasons)
	}
	return []string{err.Error()}
}

func buildStats(assignments []models.Assignment, unresolved []models.UnresolvedPart, roster []models.Student) models.GenerationStats {
	byID := make(map[string]models.Student, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}

	stats := models.GenerationStats{
		TotalAssignments:  len(assignments),
		PrimariesByGender: map[models.Gender]int{models.GenderMale: 0, models.GenderFemale: 0},
		UnresolvedParts:   len(unresolved),
	}
	for _, a := range assignments {
		primary := byID[a.StudentID]
		stats.PrimariesByGender[primary.Gender]++
		if a.AssistantID == nil {
			continue
		}
		stats.WithAssistant++
		if primary.IsFamilyOf(byID[*a.AssistantID]) {
			stats.FamilyPairs++
		}
	}
	return stats
}

// Generate runs a scheduler with default options
func Generate(program []models.Part, roster []models.Student, histories map[string]models.HistoryWindow, seed int64) (models.GenerationResult, error) {
	return NewScheduler(Options{}).Generate(program, roster, histories, seed)
}
