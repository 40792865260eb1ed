package scheduler

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// FairnessIndex returns a percentage (0-100) representing how evenly
// assignments are distributed. 100% is perfectly fair (Standard Deviation = 0).
func FairnessIndex(counts []int) float64 {
	if len(counts) == 0 {
		return 100.0
	}

	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	if sum == 0 {
		return 100.0
	}

	mean := sum / float64(len(counts))
	score := (1.0 - stdDev(counts, mean)/mean) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}

// ProjectedCounts returns, in roster order, each active student's recent count plus
// the roles the result gives them this week
func ProjectedCounts(roster []models.Student, histories map[string]models.HistoryWindow, result models.GenerationResult) []int {
	extra := make(map[string]int)
	for _, a := range result.Assignments {
		extra[a.StudentID]++
		if a.AssistantID != nil {
			extra[*a.AssistantID]++
		}
	}

	counts := make([]int, 0, len(roster))
	for _, s := range roster {
		if !s.Active {
			continue
		}
		counts = append(counts, histories[s.ID].AssignmentCountRecent+extra[s.ID])
	}
	return counts
}

// Distribution describes how recent assignments are spread over a set of students
type Distribution struct {
	Mean          float64     `json:"mean"`
	Median        float64     `json:"median"`
	NeverAssigned int         `json:"never_assigned"`
	MostAssigned  []string    `json:"most_assigned"`
	LeastAssigned []string    `json:"least_assigned"`
	Frequency     map[int]int `json:"frequency"`
}

// DistributionReport summarises the history windows of studentIDs. Students without
// a window count as zero.
func DistributionReport(studentIDs []string, histories map[string]models.HistoryWindow) Distribution {
	d := Distribution{Frequency: make(map[int]int)}
	if len(studentIDs) == 0 {
		return d
	}

	counts := make([]int, len(studentIDs))
	lo, hi := math.MaxInt, math.MinInt
	var sum int
	for i, id := range studentIDs {
		c := histories[id].AssignmentCountRecent
		counts[i] = c
		sum += c
		d.Frequency[c]++
		if c == 0 {
			d.NeverAssigned++
		}
		lo, hi = min(lo, c), max(hi, c)
	}
	d.Mean = float64(sum) / float64(len(counts))

	sorted := append([]int(nil), counts...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		d.Median = float64(sorted[mid-1]+sorted[mid]) / 2
	} else {
		d.Median = float64(sorted[mid])
	}

	for i, id := range studentIDs {
		if counts[i] == hi {
			d.MostAssigned = append(d.MostAssigned, id)
		}
		if counts[i] == lo {
			d.LeastAssigned = append(d.LeastAssigned, id)
		}
	}
	return d
}

// SimulationResult reports how often each student won the primary role over repeated draws
type SimulationResult struct {
	Trials                 int            `json:"trials"`
	Frequency              map[string]int `json:"frequency"`
	CoefficientOfVariation float64        `json:"coefficient_of_variation"`
	Equitable              bool           `json:"equitable"`
}

// equitableCV is the largest coefficient of variation still considered an even spread
const equitableCV = 0.3

// Simulate selects a primary for part trials times, each with its own seed, without
// any run state carried between draws.
func (s *Scheduler) Simulate(part models.Part, pool []models.Student, histories map[string]models.HistoryWindow, trials int, seed int64) SimulationResult {
	res := SimulationResult{Trials: trials, Frequency: make(map[string]int, len(pool))}
	for _, st := range pool {
		res.Frequency[st.ID] = 0
	}

	now := s.opts.AsOf
	if now.IsZero() {
		now = time.Now()
	}
	for i := 0; i < trials; i++ {
		rng := rand.New(rand.NewSource(seed + int64(i)))
		picked, err := NewSelector(s.classifier, s.opts.Config, rng, now).SelectPrimary(part, pool, histories)
		if err != nil {
			break
		}
		res.Frequency[picked.ID]++
	}

	counts := make([]int, 0, len(pool))
	for _, st := range pool {
		counts = append(counts, res.Frequency[st.ID])
	}
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	if len(counts) > 0 && sum > 0 {
		mean := sum / float64(len(counts))
		res.CoefficientOfVariation = stdDev(counts, mean) / mean
	}
	res.Equitable = res.CoefficientOfVariation < equitableCV
	return res
}

func stdDev(counts []int, mean float64) float64 {
	var varianceSum float64
	for _, c := range counts {
		diff := float64(c) - mean
		varianceSum += diff * diff
	}
	return math.Sqrt(varianceSum / float64(len(counts)))
}
