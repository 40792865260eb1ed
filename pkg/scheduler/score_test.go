package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

func TestScore_Examples(t *testing.T) {
	s := NewScorer(DefaultConfig(), nil)
	st := male("s")

	tests := []struct {
		name   string
		window models.HistoryWindow
		want   float64
	}{
		{"never assigned gets full bonus", models.HistoryWindow{}, 44},
		{"two recent parts ten days ago", models.HistoryWindow{AssignmentCountRecent: 2, LastAssignmentDate: daysAgo(10)}, 110},
		{"bonus is capped", models.HistoryWindow{AssignmentCountRecent: 1, LastAssignmentDate: daysAgo(300)}, 54},
		{"assigned today", models.HistoryWindow{AssignmentCountRecent: 1, LastAssignmentDate: daysAgo(0)}, 110},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Score(st, tt.window, asOf), 1e-9)
		})
	}
}

func TestScore_FlooredAtZero(t *testing.T) {
	s := NewScorer(Config{Base: 10, WeightFrequency: 10, WeightRecency: 1, MaxBonusDays: 56}, nil)
	assert.Equal(t, 0.0, s.Score(male("s"), models.HistoryWindow{}, asOf))
}

func TestScore_ZeroConfigUsesDefaults(t *testing.T) {
	a := NewScorer(Config{}, nil).Score(male("s"), models.HistoryWindow{AssignmentCountRecent: 3}, asOf)
	b := NewScorer(DefaultConfig(), nil).Score(male("s"), models.HistoryWindow{AssignmentCountRecent: 3}, asOf)
	assert.Equal(t, b, a)
}

func TestScore_JitterBounds(t *testing.T) {
	s := NewScorer(DefaultConfig(), rand.New(rand.NewSource(7)))
	for i := 0; i < 5000; i++ {
		d := s.Breakdown(male("s"), models.HistoryWindow{}, asOf)
		require.GreaterOrEqual(t, d.Jitter, -2.5)
		require.Less(t, d.Jitter, 2.5)
		require.InDelta(t, 44+d.Jitter, d.Final, 1e-9)
	}
}

func TestScore_SameSeedSameScores(t *testing.T) {
	a := NewScorer(DefaultConfig(), rand.New(rand.NewSource(42)))
	b := NewScorer(DefaultConfig(), rand.New(rand.NewSource(42)))
	w := models.HistoryWindow{AssignmentCountRecent: 1, LastAssignmentDate: daysAgo(14)}
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Score(male("s"), w, asOf), b.Score(male("s"), w, asOf))
	}
}

func TestBreakdown(t *testing.T) {
	d := NewScorer(DefaultConfig(), nil).Breakdown(female("f"), models.HistoryWindow{AssignmentCountRecent: 2, LastAssignmentDate: daysAgo(10)}, asOf)
	assert.Equal(t, "f", d.StudentID)
	assert.Equal(t, 100.0, d.Base)
	assert.Equal(t, 20.0, d.Penalty)
	assert.Equal(t, 10.0, d.Bonus)
	assert.Zero(t, d.Jitter)
	require.NotNil(t, d.DaysSinceLast)
	assert.Equal(t, 10, *d.DaysSinceLast)
	assert.Equal(t, 2, d.RecentCount)

	never := NewScorer(DefaultConfig(), nil).Breakdown(female("f"), models.HistoryWindow{}, asOf)
	assert.Nil(t, never.DaysSinceLast)
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 10, DaysBetween(asOf.AddDate(0, 0, -10), asOf))
	assert.Equal(t, 0, DaysBetween(asOf.Add(-23*time.Hour), asOf))
	assert.Equal(t, 1, DaysBetween(asOf.Add(-25*time.Hour), asOf))
	assert.Equal(t, 0, DaysBetween(asOf.AddDate(0, 0, 3), asOf), "future dates count as today")
}
