package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/arnavshah/assignment-engine-go/pkg/errors"
	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// csvRow is one data line keyed by header name
type csvRow struct {
	line   int
	values map[string]string
}

func (r csvRow) get(col string) string {
	return strings.TrimSpace(r.values[col])
}

func (r csvRow) list(col string) []string {
	raw := r.get(col)
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, "|") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (r csvRow) flag(col string, fallback bool) (bool, error) {
	raw := r.get(col)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("line %d: %s must be true or false", r.line, col)
	}
	return v, nil
}

func (r csvRow) number(col string) (int, error) {
	raw := r.get(col)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s must be a whole number", r.line, col)
	}
	return v, nil
}

func readCSV(r io.Reader, required ...string) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := cols[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []csvRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values := make(map[string]string, len(cols))
		for col, i := range cols {
			if i < len(record) {
				values[col] = record[i]
			}
		}
		rows = append(rows, csvRow{line: line, values: values})
	}
	return rows, nil
}

// ParseProgram reads parts from columns id, order, type and the optional rule overrides
func ParseProgram(r io.Reader) ([]models.Part, error) {
	rows, err := readCSV(r, "id", "order", "type")
	if err != nil {
		return nil, err
	}
	parts := make([]models.Part, 0, len(rows))
	for _, row := range rows {
		order, err := row.number("order")
		if err != nil {
			return nil, err
		}
		duration, err := row.number("duration_minutes")
		if err != nil {
			return nil, err
		}
		needsAssistant, err := row.flag("requires_assistant", false)
		if err != nil {
			return nil, err
		}
		gender := models.GenderRequirement(row.get("required_gender"))
		if !gender.Valid() {
			return nil, fmt.Errorf("line %d: required_gender must be male_only or either", row.line)
		}
		pairing := models.AssistantGenderRule(row.get("assistant_gender_rule"))
		if !pairing.Valid() {
			return nil, fmt.Errorf("line %d: assistant_gender_rule must be same_gender, same_gender_or_family or either", row.line)
		}
		parts = append(parts, models.Part{
			ID:                    row.get("id"),
			Order:                 order,
			Section:               models.Section(row.get("section")),
			Type:                  models.PartType(row.get("type")),
			Title:                 row.get("title"),
			DurationMinutes:       duration,
			RequiredGender:        gender,
			RequiresAssistant:     needsAssistant,
			AssistantGenderRule:   pairing,
			RequiredQualification: models.Qualification(row.get("required_qualification")),
		})
	}
	return parts, nil
}

// ParseRoster reads students; list columns use '|' as separator
func ParseRoster(r io.Reader) ([]models.Student, error) {
	rows, err := readCSV(r, "id", "gender")
	if err != nil {
		return nil, err
	}
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		active, err := row.flag("active", true)
		if err != nil {
			return nil, err
		}
		gender := models.Gender(strings.ToLower(row.get("gender")))
		if gender != models.GenderMale && gender != models.GenderFemale {
			return nil, fmt.Errorf("line %d: gender must be male or female", row.line)
		}
		quals := make([]models.Qualification, 0)
		for _, q := range row.list("qualifications") {
			quals = append(quals, models.Qualification(q))
		}
		students = append(students, models.Student{
			ID:             row.get("id"),
			Name:           row.get("name"),
			Gender:         gender,
			Active:         active,
			Qualifications: quals,
			Family: models.FamilyRelations{
				SpouseID:  row.get("spouse_id"),
				ParentIDs: row.list("parent_ids"),
				ChildIDs:  row.list("child_ids"),
			},
		})
	}
	return students, nil
}

// ParseHistories reads student_id, assignment_count_recent and last_assignment_date
func ParseHistories(r io.Reader) (map[string]models.HistoryWindow, error) {
	rows, err := readCSV(r, "student_id")
	if err != nil {
		return nil, err
	}
	histories := make(map[string]models.HistoryWindow, len(rows))
	for _, row := range rows {
		count, err := row.number("assignment_count_recent")
		if err != nil {
			return nil, err
		}
		w := models.HistoryWindow{StudentID: row.get("student_id"), AssignmentCountRecent: count}
		if raw := row.get("last_assignment_date"); raw != "" {
			last, err := time.Parse(weekLayout, raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: last_assignment_date must be YYYY-MM-DD", row.line)
			}
			w.LastAssignmentDate = &last
		}
		histories[w.StudentID] = w
	}
	return histories, nil
}

// WriteAssignmentsCSV writes one row per part in program order, unresolved parts included
func WriteAssignmentsCSV(w io.Writer, program []models.Part, roster []models.Student, resp models.GenerateResponse) error {
	names := make(map[string]string, len(roster))
	for _, s := range roster {
		names[s.ID] = s.Name
	}
	assigned := make(map[string]models.Assignment, len(resp.Assignments))
	for _, a := range resp.Assignments {
		assigned[a.PartID] = a
	}
	unresolved := make(map[string]models.UnresolvedPart, len(resp.Unresolved))
	for _, u := range resp.Unresolved {
		unresolved[u.PartID] = u
	}

	parts := append([]models.Part(nil), program...)
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].Order < parts[j].Order })

	writer := csv.NewWriter(w)
	writer.Write([]string{"part_order", "part_id", "part_type", "student_id", "student_name", "assistant_id", "assistant_name", "status", "details"})
	for _, p := range parts {
		var studentID, assistantID, status, details string
		if a, ok := assigned[p.ID]; ok {
			studentID, status = a.StudentID, string(a.Status)
			if a.AssistantID != nil {
				assistantID = *a.AssistantID
			}
		}
		if u, ok := unresolved[p.ID]; ok {
			status = string(u.Reason)
			details = strings.Join(u.Details, "; ")
		}
		writer.Write([]string{
			strconv.Itoa(p.Order),
			p.ID,
			string(p.Type),
			studentID,
			names[studentID],
			assistantID,
			names[assistantID],
			status,
			details,
		})
	}
	writer.Flush()
	return writer.Error()
}

func openForm(fh *multipart.FileHeader) (multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to open "+fh.Filename)
	}
	return f, nil
}

func csvError(file string, err error) error {
	return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, fmt.Sprintf("%s: %v", file, err))
}

// GenerateCSV handles CSV file uploads for generation
func (h *Handler) GenerateCSV(c *gin.Context) {
	programFile, _ := c.FormFile("program_file")
	rosterFile, _ := c.FormFile("roster_file")
	historyFile, _ := c.FormFile("history_file")

	if programFile == nil || rosterFile == nil {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "program_file and roster_file are required"))
		return
	}

	input := models.GenerateInput{
		WeekOf:  c.PostForm("week_of"),
		Persist: c.PostForm("persist") == "true",
	}
	if raw := c.PostForm("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, apperrors.Clone(apperrors.ErrValidation, "seed must be an integer"))
			return
		}
		input.Seed = &seed
	}

	pf, err := openForm(programFile)
	if err != nil {
		respondError(c, err)
		return
	}
	defer pf.Close()
	if input.Program, err = ParseProgram(pf); err != nil {
		respondError(c, csvError("program_file", err))
		return
	}

	rf, err := openForm(rosterFile)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rf.Close()
	if input.Roster, err = ParseRoster(rf); err != nil {
		respondError(c, csvError("roster_file", err))
		return
	}

	if historyFile != nil {
		hf, err := openForm(historyFile)
		if err != nil {
			respondError(c, err)
			return
		}
		defer hf.Close()
		if input.Histories, err = ParseHistories(hf); err != nil {
			respondError(c, csvError("history_file", err))
			return
		}
	}

	resp, err := h.generate(c.Request.Context(), c.GetString(ctxCongregation), input)
	if err != nil {
		respondError(c, err)
		return
	}
	h.RecordUsage(c, len(input.Program), len(input.Roster))

	var out strings.Builder
	if err := WriteAssignmentsCSV(&out, input.Program, input.Roster, resp); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":         resp.RunID,
		"seed":           resp.Seed,
		"fairness_score": resp.FairnessScore,
		"persisted":      resp.Persisted,
		"csv":            out.String(),
	})
}
