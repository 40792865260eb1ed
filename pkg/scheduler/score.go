package scheduler

import (
	"math"
	"math/rand"
	"time"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// Config holds the fairness weights. Lower scores are picked first.
type Config struct {
	Base            float64 `json:"base"`
	WeightFrequency float64 `json:"weight_frequency"`
	WeightRecency   float64 `json:"weight_recency"`
	MaxBonusDays    int     `json:"max_bonus_days"`
	JitterRange     float64 `json:"jitter_range"`
	HistoryWeeks    int     `json:"history_weeks"`
}

// DefaultConfig returns the standard balancing weights over an eight week window
func DefaultConfig() Config {
	return Config{
		Base:            100,
		WeightFrequency: 10,
		WeightRecency:   1,
		MaxBonusDays:    56,
		JitterRange:     5,
		HistoryWeeks:    8,
	}
}

// withDefaults treats a zero Config as DefaultConfig and fills the fields that
// cannot be zero. Weights and jitter are kept as given.
func (c Config) withDefaults() Config {
	if c == (Config{}) {
		return DefaultConfig()
	}
	d := DefaultConfig()
	if c.Base == 0 {
		c.Base = d.Base
	}
	if c.MaxBonusDays <= 0 {
		c.MaxBonusDays = d.MaxBonusDays
	}
	if c.HistoryWeeks <= 0 {
		c.HistoryWeeks = d.HistoryWeeks
	}
	if c.JitterRange < 0 {
		c.JitterRange = 0
	}
	return c
}

// ScoreDetail breaks a priority score into its parts
type ScoreDetail struct {
	StudentID     string  `json:"student_id"`
	Base          float64 `json:"base"`
	Penalty       float64 `json:"penalty"`
	Bonus         float64 `json:"bonus"`
	Jitter        float64 `json:"jitter"`
	Final         float64 `json:"final"`
	DaysSinceLast *int    `json:"days_since_last,omitempty"`
	RecentCount   int     `json:"recent_count"`
}

// Scorer computes history-based priority scores
type Scorer struct {
	cfg Config
	rng *rand.Rand
}

// NewScorer creates a scorer drawing jitter from rng. A nil rng disables jitter.
func NewScorer(cfg Config, rng *rand.Rand) *Scorer {
	return &Scorer{cfg: cfg.withDefaults(), rng: rng}
}

// Score returns the priority score of student as of now
func (s *Scorer) Score(student models.Student, window models.HistoryWindow, now time.Time) float64 {
	return s.Breakdown(student, window, now).Final
}

// Breakdown returns the score with its components
func (s *Scorer) Breakdown(student models.Student, window models.HistoryWindow, now time.Time) ScoreDetail {
	d := ScoreDetail{
		StudentID:   student.ID,
		Base:        s.cfg.Base,
		RecentCount: window.AssignmentCountRecent,
		Penalty:     float64(window.AssignmentCountRecent) * s.cfg.WeightFrequency,
	}

	maxBonus := float64(s.cfg.MaxBonusDays) * s.cfg.WeightRecency
	if window.LastAssignmentDate == nil {
		d.Bonus = maxBonus
	} else {
		days := DaysBetween(*window.LastAssignmentDate, now)
		d.DaysSinceLast = &days
		d.Bonus = float64(min(days, s.cfg.MaxBonusDays)) * s.cfg.WeightRecency
	}

	if s.rng != nil && s.cfg.JitterRange > 0 {
		d.Jitter = s.rng.Float64()*s.cfg.JitterRange - s.cfg.JitterRange/2
	}

	d.Final = math.Max(0, d.Base+d.Penalty-d.Bonus+d.Jitter)
	return d
}

// DaysBetween returns whole days elapsed from then to now, never negative
func DaysBetween(then, now time.Time) int {
	days := int(math.Floor(now.Sub(then).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}
