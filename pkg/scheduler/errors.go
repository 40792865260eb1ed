package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// Structural input errors abort Generate before any assignment is attempted
var (
	ErrEmptyProgram     = errors.New("program has no parts")
	ErrEmptyRoster      = errors.New("roster has no students")
	ErrDuplicateOrder   = errors.New("duplicate part order")
	ErrDuplicatePart    = errors.New("duplicate part id")
	ErrDuplicateStudent = errors.New("duplicate student id")
	ErrMissingRule      = errors.New("no eligibility rule for part type")
	ErrMissingHistory   = errors.New("missing history entry for active student")
	ErrInvalidPartRule  = errors.New("unrecognised rule value on part")
)

// ErrNoEligibleCandidate is matched by every NoCandidateError
var ErrNoEligibleCandidate = errors.New("no eligible candidate")

// NoCandidateError explains why a role could not be filled
type NoCandidateError struct {
	PartID  string
	Role    models.Role
	Reasons []string
}

func (e *NoCandidateError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("no eligible %s for part %s", e.Role, e.PartID)
	}
	return fmt.Sprintf("no eligible %s for part %s: %s", e.Role, e.PartID, strings.Join(e.Reasons, "; "))
}

func (e *NoCandidateError) Is(target error) bool {
	return target == ErrNoEligibleCandidate
}

// IsStructural reports whether err is one of the fatal input errors
func IsStructural(err error) bool {
	for _, target := range []error{
		ErrEmptyProgram, ErrEmptyRoster, ErrDuplicateOrder, ErrDuplicatePart,
		ErrDuplicateStudent, ErrMissingRule, ErrMissingHistory, ErrInvalidPartRule,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
