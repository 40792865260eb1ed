package scheduler

import (
	"fmt"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// Rule identifiers reported by Validate
const (
	RuleUnknownPart       = "unknown_part"
	RuleUnknownStudent    = "unknown_student"
	RuleDuplicatePart     = "duplicate_part"
	RulePrimaryIneligible = "primary_ineligible"
	RuleDoubleBooked      = "double_booked"
	RuleAssistantIsSelf   = "assistant_is_primary"
	RuleAssistantPairing  = "assistant_pairing"
	RuleMissingAssistant  = "missing_assistant"
	RuleExclusiveRoles    = "exclusive_roles"
)

// Validate re-checks the hard rules on a finished set of assignments, such as one
// an operator edited by hand. An empty slice means the set is valid.
func (s *Scheduler) Validate(program []models.Part, roster []models.Student, assignments []models.Assignment) []models.Violation {
	parts := make(map[string]models.Part, len(program))
	for _, p := range program {
		parts[p.ID] = p
	}
	students := make(map[string]models.Student, len(roster))
	for _, st := range roster {
		students[st.ID] = st
	}

	violations := []models.Violation{}
	add := func(rule, partID, studentID, format string, args ...any) {
		violations = append(violations, models.Violation{
			Rule:      rule,
			PartID:    partID,
			StudentID: studentID,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	seenPart := make(map[string]bool)
	primaryOf := make(map[string]string)
	assisting := make(map[string]string)

	for _, a := range assignments {
		part, ok := parts[a.PartID]
		if !ok {
			add(RuleUnknownPart, a.PartID, a.StudentID, "part %s is not in the program", a.PartID)
			continue
		}
		if seenPart[a.PartID] {
			add(RuleDuplicatePart, a.PartID, a.StudentID, "part %s is assigned more than once", a.PartID)
			continue
		}
		seenPart[a.PartID] = true

		primary, ok := students[a.StudentID]
		if !ok {
			add(RuleUnknownStudent, a.PartID, a.StudentID, "student %s is not on the roster", a.StudentID)
			continue
		}

		rule, _ := s.classifier.Rule(part)
		if ok, reason := eligible(rule, primary, models.RolePrimary); !ok {
			add(RulePrimaryIneligible, a.PartID, a.StudentID, "student %s cannot take part %s: %s", a.StudentID, a.PartID, reason)
		}
		if prev, dup := primaryOf[a.StudentID]; dup {
			add(RuleDoubleBooked, a.PartID, a.StudentID, "student %s is already primary for part %s", a.StudentID, prev)
		} else {
			primaryOf[a.StudentID] = a.PartID
		}

		if a.AssistantID == nil {
			if rule.AssistantRequired {
				add(RuleMissingAssistant, a.PartID, a.StudentID, "part %s requires an assistant", a.PartID)
			}
			continue
		}

		assistantID := *a.AssistantID
		if assistantID == a.StudentID {
			add(RuleAssistantIsSelf, a.PartID, assistantID, "student %s cannot assist their own part", assistantID)
			continue
		}
		assistant, ok := students[assistantID]
		if !ok {
			add(RuleUnknownStudent, a.PartID, assistantID, "assistant %s is not on the roster", assistantID)
			continue
		}
		if ok, reason := compatible(rule, primary, assistant); !ok {
			add(RuleAssistantPairing, a.PartID, assistantID, "assistant %s cannot pair with %s: %s", assistantID, a.StudentID, reason)
		}
		assisting[assistantID] = a.PartID
	}

	if s.opts.ExclusiveRoles {
		for _, a := range assignments {
			if partID, ok := assisting[a.StudentID]; ok && seenPart[a.PartID] {
				add(RuleExclusiveRoles, a.PartID, a.StudentID, "student %s also assists in part %s", a.StudentID, partID)
			}
		}
	}
	return violations
}
