package models

import (
	"slices"
	"time"
)

// Gender of a student
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Role a student plays in a part
type Role string

const (
	RolePrimary   Role = "primary"
	RoleAssistant Role = "assistant"
)

// GenderRequirement restricts who may be the primary assignee of a part
type GenderRequirement string

const (
	GenderMaleOnly GenderRequirement = "male_only"
	GenderEither   GenderRequirement = "either"
)

// Valid reports whether g is empty or one of the known requirements
func (g GenderRequirement) Valid() bool {
	return g == "" || g == GenderMaleOnly || g == GenderEither
}

// AssistantGenderRule restricts the assistant relative to the primary assignee
type AssistantGenderRule string

const (
	AssistantSameGender         AssistantGenderRule = "same_gender"
	AssistantSameGenderOrFamily AssistantGenderRule = "same_gender_or_family"
	AssistantEither             AssistantGenderRule = "either"
)

// Valid reports whether r is empty or one of the known pairing rules
func (r AssistantGenderRule) Valid() bool {
	switch r {
	case "", AssistantSameGender, AssistantSameGenderOrFamily, AssistantEither:
		return true
	}
	return false
}

// Section of the weekly meeting program
type Section string

const (
	SectionTreasures Section = "treasures"
	SectionMinistry  Section = "ministry"
	SectionLiving    Section = "living"
)

// PartType drives the eligibility rule lookup
type PartType string

const (
	PartChairman              PartType = "chairman"
	PartPrayer                PartType = "prayer"
	PartTreasuresTalk         PartType = "treasures_talk"
	PartSpiritualGems         PartType = "spiritual_gems"
	PartBibleReading          PartType = "bible_reading"
	PartStartingConversation  PartType = "starting_conversation"
	PartFollowingUp           PartType = "following_up"
	PartMakingDisciples       PartType = "making_disciples"
	PartExplainingBeliefsTalk PartType = "explaining_beliefs_talk"
	PartExplainingBeliefsDemo PartType = "explaining_beliefs_demo"
	PartTalk                  PartType = "talk"
	PartLivingPart            PartType = "living_part"
	PartCongregationStudy     PartType = "congregation_study"
)

// KnownPartTypes lists every part type the rule table must cover
var KnownPartTypes = []PartType{
	PartChairman,
	PartPrayer,
	PartTreasuresTalk,
	PartSpiritualGems,
	PartBibleReading,
	PartStartingConversation,
	PartFollowingUp,
	PartMakingDisciples,
	PartExplainingBeliefsTalk,
	PartExplainingBeliefsDemo,
	PartTalk,
	PartLivingPart,
	PartCongregationStudy,
}

// Known reports whether t is one of KnownPartTypes
func (t PartType) Known() bool {
	return slices.Contains(KnownPartTypes, t)
}

// Qualification is a capability flag held by a student
type Qualification string

const (
	QualChairman                   Qualification = "chairman"
	QualPrayer                     Qualification = "prayer"
	QualTreasuresTalk              Qualification = "treasures_talk"
	QualSpiritualGems              Qualification = "spiritual_gems"
	QualStarting                   Qualification = "starting"
	QualFollowing                  Qualification = "following"
	QualMakingDisciples            Qualification = "making_disciples"
	QualExplaining                 Qualification = "explaining"
	QualQualified                  Qualification = "qualified"
	QualElder                      Qualification = "elder"
	QualMinisterialServant         Qualification = "ministerial_servant"
	QualCongregationStudyConductor Qualification = "congregation_study_conductor"
)

// AssignmentStatus of a generated assignment
type AssignmentStatus string

const (
	StatusDesignated AssignmentStatus = "designated"
)

// FamilyRelations links a student to relatives on the roster
type FamilyRelations struct {
	SpouseID  string   `json:"spouse_id,omitempty"`
	ParentIDs []string `json:"parent_ids,omitempty"`
	ChildIDs  []string `json:"child_ids,omitempty"`
}

// Student represents a roster member who can receive parts
type Student struct {
	ID             string          `json:"id" binding:"required"`
	Name           string          `json:"name,omitempty"`
	Gender         Gender          `json:"gender" binding:"required,oneof=male female"`
	Active         bool            `json:"active"`
	Qualifications []Qualification `json:"qualifications,omitempty"`
	Family         FamilyRelations `json:"family,omitempty"`
}

// HasQualification reports whether the student holds flag q
func (s Student) HasQualification(q Qualification) bool {
	return slices.Contains(s.Qualifications, q)
}

// IsFamilyOf reports whether s and other are spouses, parent and child, or siblings
// sharing a listed parent. Either side's record is enough.
func (s Student) IsFamilyOf(other Student) bool {
	if s.ID == other.ID {
		return false
	}
	if (s.Family.SpouseID != "" && s.Family.SpouseID == other.ID) ||
		(other.Family.SpouseID != "" && other.Family.SpouseID == s.ID) {
		return true
	}
	if slices.Contains(s.Family.ParentIDs, other.ID) || slices.Contains(s.Family.ChildIDs, other.ID) ||
		slices.Contains(other.Family.ParentIDs, s.ID) || slices.Contains(other.Family.ChildIDs, s.ID) {
		return true
	}
	for _, p := range s.Family.ParentIDs {
		if slices.Contains(other.Family.ParentIDs, p) {
			return true
		}
	}
	return false
}

// Part represents one segment of a weekly meeting program.
// Zero-valued rule fields defer to the rule table for the part type.
type Part struct {
	ID                    string              `json:"id" binding:"required"`
	Order                 int                 `json:"order"`
	Section               Section             `json:"section,omitempty"`
	Type                  PartType            `json:"type" binding:"required"`
	Title                 string              `json:"title,omitempty"`
	DurationMinutes       int                 `json:"duration_minutes,omitempty"`
	RequiredGender        GenderRequirement   `json:"required_gender,omitempty" binding:"omitempty,oneof=male_only either"`
	RequiresAssistant     bool                `json:"requires_assistant,omitempty"`
	AssistantGenderRule   AssistantGenderRule `json:"assistant_gender_rule,omitempty" binding:"omitempty,oneof=same_gender same_gender_or_family either"`
	RequiredQualification Qualification       `json:"required_qualification,omitempty"`
}

// HistoryWindow is a snapshot of a student's recent assignment load
type HistoryWindow struct {
	StudentID             string     `json:"student_id"`
	AssignmentCountRecent int        `json:"assignment_count_recent"`
	LastAssignmentDate    *time.Time `json:"last_assignment_date,omitempty"`
}

// Assignment represents a part-student pairing proposed by the engine
type Assignment struct {
	PartID      string           `json:"part_id"`
	StudentID   string           `json:"student_id"`
	AssistantID *string          `json:"assistant_id"`
	Status      AssignmentStatus `json:"status"`
}

// UnresolvedReason explains why a part needs manual attention
type UnresolvedReason string

const (
	ReasonNoEligiblePrimary UnresolvedReason = "no_eligible_primary"
	ReasonMissingAssistant  UnresolvedReason = "missing_assistant"
)

// UnresolvedPart represents a part that could not be fully assigned
type UnresolvedPart struct {
	PartID  string           `json:"part_id"`
	Order   int              `json:"order"`
	Type    PartType         `json:"type"`
	Reason  UnresolvedReason `json:"reason"`
	Details []string         `json:"details,omitempty"`
}

// GenerationStats summarises one generation run
type GenerationStats struct {
	TotalAssignments  int            `json:"total_assignments"`
	PrimariesByGender map[Gender]int `json:"primaries_by_gender"`
	WithAssistant     int            `json:"with_assistant"`
	FamilyPairs       int            `json:"family_pairs"`
	UnresolvedParts   int            `json:"unresolved_parts"`
}

// GenerationResult is the outcome of one generation run
type GenerationResult struct {
	Assignments []Assignment     `json:"assignments"`
	Unresolved  []UnresolvedPart `json:"unresolved"`
	Stats       GenerationStats  `json:"stats"`
}

// GenerateOptions are per-request engine overrides
type GenerateOptions struct {
	ExclusiveRoles        bool     `json:"exclusive_roles"`
	AllowRepeatAssistant  bool     `json:"allow_repeat_assistant"`
	PreferFamilyAssistant bool     `json:"prefer_family_assistant"`
	PrimariesMayAssist    bool     `json:"primaries_may_assist"`
	LenientHistory        bool     `json:"lenient_history"`
	ExcludeStudentIDs     []string `json:"exclude_student_ids,omitempty"`
}

// GenerateInput is the data structure for the generation endpoint
type GenerateInput struct {
	WeekOf    string                   `json:"week_of" binding:"required"`
	Seed      *int64                   `json:"seed,omitempty"`
	Program   []Part                   `json:"program" binding:"required,min=1,dive"`
	Roster    []Student                `json:"roster" binding:"required,min=1,dive"`
	Histories map[string]HistoryWindow `json:"histories,omitempty"`
	Options   GenerateOptions          `json:"options"`
	Persist   bool                     `json:"persist"`
}

// Violation is a broken hard rule found when re-checking a result
type Violation struct {
	Rule      string `json:"rule"`
	PartID    string `json:"part_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Message   string `json:"message"`
}

// GenerateResponse is the data structure for the generation result
type GenerateResponse struct {
	RunID         string           `json:"run_id"`
	WeekOf        string           `json:"week_of"`
	Seed          int64            `json:"seed"`
	Assignments   []Assignment     `json:"assignments"`
	Unresolved    []UnresolvedPart `json:"unresolved"`
	Stats         GenerationStats  `json:"stats"`
	FairnessScore float64          `json:"fairness_score"`
	Violations    []Violation      `json:"violations"`
	Persisted     bool             `json:"persisted"`
}

// CheckInput is the data structure for re-validating an edited result
type CheckInput struct {
	Program     []Part          `json:"program" binding:"required,min=1,dive"`
	Roster      []Student       `json:"roster" binding:"required,min=1,dive"`
	Assignments []Assignment    `json:"assignments"`
	Options     GenerateOptions `json:"options"`
}

// SimulateInput asks how often each pool member would win one part over many draws
type SimulateInput struct {
	WeekOf    string                   `json:"week_of" binding:"required"`
	Seed      *int64                   `json:"seed,omitempty"`
	Trials    int                      `json:"trials" binding:"omitempty,min=1,max=10000"`
	Part      Part                     `json:"part" binding:"required"`
	Pool      []Student                `json:"pool" binding:"required,min=1,dive"`
	Histories map[string]HistoryWindow `json:"histories,omitempty"`
}
