package scheduler

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// Selector picks the best eligible student for a role
type Selector struct {
	classifier   *Classifier
	scorer       *Scorer
	rng          *rand.Rand
	now          time.Time
	preferFamily bool
}

// NewSelector creates a selector. rng drives both score jitter and tie-breaks.
func NewSelector(classifier *Classifier, cfg Config, rng *rand.Rand, now time.Time) *Selector {
	if classifier == nil {
		classifier = NewClassifier(nil, nil)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	return &Selector{
		classifier: classifier,
		scorer:     NewScorer(cfg, rng),
		rng:        rng,
		now:        now,
	}
}

// PreferFamily ranks relatives of the primary ahead of other assistant candidates
func (s *Selector) PreferFamily(on bool) *Selector {
	s.preferFamily = on
	return s
}

type ranked struct {
	student models.Student
	score   float64
	count   int
	key     int
	family  bool
}

// SelectPrimary returns the lowest scoring student in pool eligible for the primary role
func (s *Selector) SelectPrimary(part models.Part, pool []models.Student, histories map[string]models.HistoryWindow) (models.Student, error) {
	rule, _ := s.classifier.Rule(part)

	rejected := make(map[Reason]int)
	var candidates []models.Student
	for _, st := range pool {
		if ok, reason := eligible(rule, st, models.RolePrimary); !ok {
			rejected[reason]++
			continue
		}
		candidates = append(candidates, st)
	}

	if len(candidates) == 0 {
		return models.Student{}, &NoCandidateError{
			PartID:  part.ID,
			Role:    models.RolePrimary,
			Reasons: describeRejections(rejected, rule, len(pool)),
		}
	}

	best := s.rank(candidates, histories, nil)
	return best[0].student, nil
}

// SelectAssistant returns the best partner for primary, or nil when the part needs none
func (s *Selector) SelectAssistant(part models.Part, primary models.Student, pool []models.Student, histories map[string]models.HistoryWindow) (*models.Student, error) {
	rule, _ := s.classifier.Rule(part)
	if !rule.AssistantRequired {
		return nil, nil
	}

	rejected := make(map[Reason]int)
	var candidates []models.Student
	for _, st := range pool {
		if st.ID == primary.ID {
			continue
		}
		if ok, reason := compatible(rule, primary, st); !ok {
			rejected[reason]++
			continue
		}
		candidates = append(candidates, st)
	}

	if len(candidates) == 0 {
		return nil, &NoCandidateError{
			PartID:  part.ID,
			Role:    models.RoleAssistant,
			Reasons: describeRejections(rejected, rule, len(pool)),
		}
	}

	best := s.rank(candidates, histories, &primary)
	picked := best[0].student
	return &picked, nil
}

// rank scores candidates in pool order so that the random stream is consumed
// deterministically, then sorts by score, recent count and a random key.
func (s *Selector) rank(candidates []models.Student, histories map[string]models.HistoryWindow, primary *models.Student) []ranked {
	keys := s.rng.Perm(len(candidates))
	out := make([]ranked, len(candidates))
	for i, st := range candidates {
		window, ok := histories[st.ID]
		if !ok {
			window = models.HistoryWindow{StudentID: st.ID}
		}
		out[i] = ranked{
			student: st,
			score:   s.scorer.Score(st, window, s.now),
			count:   window.AssignmentCountRecent,
			key:     keys[i],
			family:  primary != nil && s.preferFamily && st.IsFamilyOf(*primary),
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.family != b.family {
			return a.family
		}
		if a.score != b.score {
			return a.score < b.score
		}
		if a.count != b.count {
			return a.count < b.count
		}
		return a.key < b.key
	})
	return out
}

var rejectionOrder = []Reason{ReasonInactive, ReasonGender, ReasonQualification, ReasonAssistantGender}

func describeRejections(rejected map[Reason]int, rule Rule, poolSize int) []string {
	if poolSize == 0 {
		return []string{"no students left in the pool"}
	}
	var reasons []string
	for _, r := range rejectionOrder {
		n := rejected[r]
		if n == 0 {
			continue
		}
		switch r {
		case ReasonInactive:
			reasons = append(reasons, fmt.Sprintf("%d students were inactive", n))
		case ReasonGender:
			reasons = append(reasons, fmt.Sprintf("%d students were excluded by the male-only rule", n))
		case ReasonQualification:
			reasons = append(reasons, fmt.Sprintf("%d students lacked qualification %s", n, rule.RequiredQualification))
		case ReasonAssistantGender:
			reasons = append(reasons, fmt.Sprintf("%d students did not satisfy the %s pairing rule", n, rule.AssistantGenderRule))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no eligible students found")
	}
	return reasons
}
