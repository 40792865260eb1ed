package scheduler

import (
	"fmt"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// Rule is the eligibility record for one part type
type Rule struct {
	RequiredGender        models.GenderRequirement
	RequiredQualification models.Qualification
	AssistantRequired     bool
	AssistantGenderRule   models.AssistantGenderRule
}

// RuleTable maps every part type to its rule
type RuleTable map[models.PartType]Rule

// fallbackRule applies to part types the table does not know about
var fallbackRule = Rule{
	RequiredGender:      models.GenderEither,
	AssistantGenderRule: models.AssistantEither,
}

// DefaultRules returns the assignment policy for the midweek meeting parts
func DefaultRules() RuleTable {
	maleWith := func(q models.Qualification) Rule {
		return Rule{RequiredGender: models.GenderMaleOnly, RequiredQualification: q, AssistantGenderRule: models.AssistantEither}
	}
	demo := func(q models.Qualification, pairing models.AssistantGenderRule) Rule {
		return Rule{RequiredGender: models.GenderEither, RequiredQualification: q, AssistantRequired: true, AssistantGenderRule: pairing}
	}

	return RuleTable{
		models.PartChairman:      maleWith(models.QualChairman),
		models.PartPrayer:        maleWith(models.QualPrayer),
		models.PartTreasuresTalk: maleWith(models.QualTreasuresTalk),
		models.PartSpiritualGems: maleWith(models.QualSpiritualGems),
		models.PartBibleReading:  maleWith(""),

		models.PartStartingConversation:  demo(models.QualStarting, models.AssistantSameGenderOrFamily),
		models.PartFollowingUp:           demo(models.QualFollowing, models.AssistantSameGender),
		models.PartMakingDisciples:       demo(models.QualMakingDisciples, models.AssistantSameGender),
		models.PartExplainingBeliefsDemo: demo(models.QualExplaining, models.AssistantSameGenderOrFamily),
		models.PartExplainingBeliefsTalk: maleWith(models.QualQualified),

		models.PartTalk:              maleWith(models.QualQualified),
		models.PartLivingPart:        maleWith(models.QualQualified),
		models.PartCongregationStudy: maleWith(models.QualElder),
	}
}

// Lookup returns the rule for t and whether t was found
func (rt RuleTable) Lookup(t models.PartType) (Rule, bool) {
	r, ok := rt[t]
	if !ok {
		return fallbackRule, false
	}
	return r, true
}

// Check ensures every known part type has a mapping
func (rt RuleTable) Check() error {
	for _, t := range models.KnownPartTypes {
		if _, ok := rt[t]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRule, t)
		}
	}
	return nil
}

// Effective merges the table rule with the overrides set on the part itself
func (rt RuleTable) Effective(part models.Part) (Rule, bool) {
	r, known := rt.Lookup(part.Type)
	if part.RequiredGender == models.GenderMaleOnly {
		r.RequiredGender = models.GenderMaleOnly
	}
	if part.RequiredQualification != "" {
		r.RequiredQualification = part.RequiredQualification
	}
	if part.RequiresAssistant {
		r.AssistantRequired = true
	}
	if part.AssistantGenderRule != "" {
		r.AssistantGenderRule = part.AssistantGenderRule
	}
	if r.AssistantRequired && r.AssistantGenderRule == "" {
		r.AssistantGenderRule = models.AssistantSameGender
	}
	return r, known
}
