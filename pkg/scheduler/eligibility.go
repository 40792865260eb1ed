package scheduler

import (
	"go.uber.org/zap"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// Reason explains an eligibility decision
type Reason string

const (
	ReasonEligible        Reason = ""
	ReasonInactive        Reason = "inactive"
	ReasonGender          Reason = "male_only"
	ReasonQualification   Reason = "missing_qualification"
	ReasonAssistantGender Reason = "assistant_gender"
	ReasonSameStudent     Reason = "same_student"
)

// Classifier decides whether a student may fill a role in a part
type Classifier struct {
	rules  RuleTable
	logger *zap.Logger
}

// NewClassifier creates a classifier over rules, falling back to DefaultRules
func NewClassifier(rules RuleTable, logger *zap.Logger) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{rules: rules, logger: logger}
}

// Rule returns the effective rule for part and whether its type was in the table
func (c *Classifier) Rule(part models.Part) (Rule, bool) {
	return c.rules.Effective(part)
}

// WarnUnknown logs a data-quality warning when part has a type missing from the table
func (c *Classifier) WarnUnknown(part models.Part) bool {
	if _, known := c.rules.Lookup(part.Type); known {
		return false
	}
	c.logger.Warn("unknown part type, using least restrictive rule",
		zap.String("part_id", part.ID),
		zap.String("type", string(part.Type)),
	)
	return true
}

// IsEligible checks the hard constraints for student in role. Assistant gender
// depends on the chosen primary and is checked by AssistantCompatible.
func (c *Classifier) IsEligible(part models.Part, student models.Student, role models.Role) (bool, Reason) {
	r, _ := c.rules.Effective(part)
	return eligible(r, student, role)
}

func eligible(r Rule, student models.Student, role models.Role) (bool, Reason) {
	if !student.Active {
		return false, ReasonInactive
	}
	if role != models.RolePrimary {
		return true, ReasonEligible
	}
	if r.RequiredGender == models.GenderMaleOnly && student.Gender != models.GenderMale {
		return false, ReasonGender
	}
	if r.RequiredQualification != "" && !student.HasQualification(r.RequiredQualification) {
		return false, ReasonQualification
	}
	return true, ReasonEligible
}

// AssistantCompatible checks candidate against the pairing rule relative to primary
func (c *Classifier) AssistantCompatible(part models.Part, primary, candidate models.Student) (bool, Reason) {
	r, _ := c.rules.Effective(part)
	return compatible(r, primary, candidate)
}

func compatible(r Rule, primary, candidate models.Student) (bool, Reason) {
	if candidate.ID == primary.ID {
		return false, ReasonSameStudent
	}
	if ok, reason := eligible(r, candidate, models.RoleAssistant); !ok {
		return false, reason
	}
	switch r.AssistantGenderRule {
	case models.AssistantEither:
		return true, ReasonEligible
	case models.AssistantSameGenderOrFamily:
		if candidate.Gender == primary.Gender || candidate.IsFamilyOf(primary) {
			return true, ReasonEligible
		}
		return false, ReasonAssistantGender
	default:
		if candidate.Gender == primary.Gender {
			return true, ReasonEligible
		}
		return false, ReasonAssistantGender
	}
}

// IsEligible evaluates the default rule table
func IsEligible(part models.Part, student models.Student, role models.Role) (bool, Reason) {
	return NewClassifier(nil, nil).IsEligible(part, student, role)
}
