package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arnavshah/assignment-engine-go/pkg/auth"
	"github.com/arnavshah/assignment-engine-go/pkg/config"
	"github.com/arnavshah/assignment-engine-go/pkg/database"
	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	h      *Handler
	auth   *auth.Authenticator
	key    string
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	cfg := &config.Config{
		JWT:              config.JWTConfig{Secret: "jwt", Expiration: time.Hour},
		Admin:            config.AdminConfig{Username: "admin", Password: "pw"},
		APIMasterSecret:  "master",
		DefaultRateLimit: rateLimit,
		Engine:           config.EngineConfig{WeightFrequency: 10, WeightRecency: 1, MaxBonusDays: 56, JitterRange: 5, HistoryWeeks: 8},
	}

	db, err := database.InitDB(config.DatabaseConfig{Path: "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	a := auth.New(cfg).WithBcryptCost(bcrypt.MinCost)
	require.NoError(t, a.EnsureAdminExists(context.Background(), db, cfg.Admin, nil))

	h := New(db, a, cfg, nil, nil)
	return &testServer{router: NewRouter(h), h: h, auth: a, key: a.GenerateHMACKey("north")}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func seedPtr(n int64) *int64 { return &n }

func program() []models.Part {
	return []models.Part{
		{ID: "reading", Order: 1, Type: models.PartBibleReading},
		{ID: "start", Order: 2, Type: models.PartStartingConversation},
	}
}

func roster() []models.Student {
	return []models.Student{
		{ID: "m1", Name: "Mark", Gender: models.GenderMale, Active: true},
		{ID: "m2", Name: "Luke", Gender: models.GenderMale, Active: true},
		{ID: "f1", Name: "Anna", Gender: models.GenderFemale, Active: true, Qualifications: []models.Qualification{models.QualStarting}},
		{ID: "f2", Name: "Ruth", Gender: models.GenderFemale, Active: true},
	}
}

func histories() map[string]models.HistoryWindow {
	h := make(map[string]models.HistoryWindow)
	for _, s := range roster() {
		h[s.ID] = models.HistoryWindow{StudentID: s.ID}
	}
	return h
}

func TestGenerateAndRunLifecycle(t *testing.T) {
	s := newTestServer(t, 100)

	rec := s.do(t, http.MethodPost, "/api/generate", models.GenerateInput{
		WeekOf:    "2026-03-02",
		Seed:      seedPtr(7),
		Program:   program(),
		Roster:    roster(),
		Histories: histories(),
		Persist:   true,
	}, s.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.GenerateResponse](t, rec)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, int64(7), resp.Seed)
	assert.True(t, resp.Persisted)
	require.Len(t, resp.Assignments, 2)
	assert.Empty(t, resp.Unresolved)
	assert.Empty(t, resp.Violations)
	assert.Equal(t, "f1", resp.Assignments[1].StudentID)
	require.NotNil(t, resp.Assignments[1].AssistantID)
	assert.Equal(t, "f2", *resp.Assignments[1].AssistantID)

	rec = s.do(t, http.MethodGet, "/api/runs/"+resp.RunID, nil, s.key)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[struct {
		Assignments []database.AssignmentRecord `json:"assignments"`
	}](t, rec)
	assert.Len(t, run.Assignments, 2)

	rec = s.do(t, http.MethodGet, "/api/history?as_of=2026-03-09", nil, s.key)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[struct {
		Histories map[string]models.HistoryWindow `json:"histories"`
	}](t, rec)
	assert.Equal(t, 1, hist.Histories["f1"].AssignmentCountRecent)
	assert.Equal(t, 1, hist.Histories["f2"].AssignmentCountRecent)

	other := s.auth.GenerateHMACKey("south")
	rec = s.do(t, http.MethodDelete, "/api/runs/"+resp.RunID, nil, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/runs/"+resp.RunID, nil, s.key)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/runs/"+resp.RunID, nil, s.key)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateUsesStoredHistory(t *testing.T) {
	s := newTestServer(t, 100)
	readingOnly := []models.Part{{ID: "reading", Order: 1, Type: models.PartBibleReading}}
	men := roster()[:2]

	rec := s.do(t, http.MethodPost, "/api/generate", models.GenerateInput{
		WeekOf: "2026-03-02", Seed: seedPtr(1), Program: readingOnly, Roster: men, Persist: true,
	}, s.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[models.GenerateResponse](t, rec).Assignments[0].StudentID

	for seed := int64(0); seed < 5; seed++ {
		rec = s.do(t, http.MethodPost, "/api/generate", models.GenerateInput{
			WeekOf: "2026-03-09", Seed: seedPtr(seed), Program: readingOnly, Roster: men,
		}, s.key)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEqual(t, first, decode[models.GenerateResponse](t, rec).Assignments[0].StudentID)
	}
}

func TestGenerateErrors(t *testing.T) {
	s := newTestServer(t, 100)

	partial := histories()
	delete(partial, "m2")

	tests := []struct {
		name   string
		input  models.GenerateInput
		status int
		code   string
	}{
		{"missing week", models.GenerateInput{Program: program(), Roster: roster()}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad week", models.GenerateInput{WeekOf: "March", Program: program(), Roster: roster()}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing history", models.GenerateInput{WeekOf: "2026-03-02", Program: program(), Roster: roster(), Histories: partial}, http.StatusBadRequest, "INVALID_PROGRAM"},
		{"duplicate order", models.GenerateInput{WeekOf: "2026-03-02", Program: []models.Part{
			{ID: "a", Order: 1, Type: models.PartBibleReading},
			{ID: "b", Order: 1, Type: models.PartTalk},
		}, Roster: roster()}, http.StatusBadRequest, "INVALID_PROGRAM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/generate", tt.input, s.key)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Error.Code)
		})
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	s := newTestServer(t, 1)

	rec := s.do(t, http.MethodGet, "/api/usage", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/usage", nil, "north.forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_API_KEY", decode[errorBody](t, rec).Error.Code)

	input := models.GenerateInput{WeekOf: "2026-03-02", Program: program(), Roster: roster(), Histories: histories()}
	rec = s.do(t, http.MethodPost, "/api/generate", input, s.key)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/generate", input, s.key)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode[errorBody](t, rec).Error.Code)
}

func TestUsage(t *testing.T) {
	s := newTestServer(t, 100)
	input := models.GenerateInput{WeekOf: "2026-03-02", Program: program(), Roster: roster(), Histories: histories()}
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/generate", input, s.key).Code)
	}

	rec := s.do(t, http.MethodGet, "/api/usage", nil, s.key)
	require.Equal(t, http.StatusOK, rec.Code)
	usage := decode[struct {
		Congregation string `json:"congregation"`
		Totals       struct {
			Requests int `json:"requests"`
			Parts    int `json:"parts"`
			Students int `json:"students"`
		} `json:"totals"`
	}](t, rec)
	assert.Equal(t, "north", usage.Congregation)
	assert.Equal(t, 2, usage.Totals.Requests)
	assert.Equal(t, 4, usage.Totals.Parts)
	assert.Equal(t, 8, usage.Totals.Students)
}

func TestAdminKeys(t *testing.T) {
	s := newTestServer(t, 100)

	rec := s.do(t, http.MethodPost, "/admin/login", gin.H{"username": "admin", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/login", gin.H{"username": "admin", "password": "pw"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[struct {
		AccessToken string `json:"access_token"`
	}](t, rec).AccessToken

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/admin/keys", nil, "").Code)

	rec = s.do(t, http.MethodPost, "/admin/keys", gin.H{"name": "east", "rate_limit": 5}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issued := decode[struct {
		ID  uint   `json:"id"`
		Key string `json:"key"`
	}](t, rec)
	assert.Equal(t, s.auth.GenerateHMACKey("east"), issued.Key)

	rec = s.do(t, http.MethodGet, "/admin/keys", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"east"`)
	assert.NotContains(t, rec.Body.String(), issued.Key)

	id := strconv.FormatUint(uint64(issued.ID), 10)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/admin/keys/"+id, gin.H{"rate_limit": 50}, token).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/usage", nil, issued.Key).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/admin/usage/"+id, nil, token).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/admin/keys/"+id, nil, token).Code)
	rec = s.do(t, http.MethodGet, "/api/usage", nil, issued.Key)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "API key revoked", decode[errorBody](t, rec).Error.Message)

	rec = s.do(t, http.MethodPost, "/admin/keys", gin.H{"name": "east"}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/usage", nil, issued.Key).Code)
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer(t, 100)

	odd := append(program(), models.Part{ID: "x", Order: 3, Type: models.PartType("announcements")})
	rec := s.do(t, http.MethodPost, "/api/validate", models.GenerateInput{WeekOf: "2026-03-02", Program: odd, Roster: roster()}, s.key)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Valid    bool     `json:"valid"`
		Warnings []string `json:"warnings"`
		Stats    struct {
			PartsWithAssistant int `json:"parts_with_assistant"`
		} `json:"stats"`
	}](t, rec)
	assert.True(t, body.Valid)
	require.Len(t, body.Warnings, 1)
	assert.Contains(t, body.Warnings[0], "announcements")
	assert.Equal(t, 1, body.Stats.PartsWithAssistant)

	dup := append(roster(), roster()[0])
	rec = s.do(t, http.MethodPost, "/api/validate", models.GenerateInput{WeekOf: "2026-03-02", Program: program(), Roster: dup}, s.key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)
	assert.Contains(t, rec.Body.String(), "duplicate student id")
}

func TestCheckEndpoint(t *testing.T) {
	s := newTestServer(t, 100)
	m2 := "m2"
	rec := s.do(t, http.MethodPost, "/api/check", models.CheckInput{
		Program: program(),
		Roster:  roster(),
		Assignments: []models.Assignment{
			{PartID: "reading", StudentID: "f2"},
			{PartID: "start", StudentID: "f1", AssistantID: &m2},
		},
	}, s.key)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Valid      bool               `json:"valid"`
		Violations []models.Violation `json:"violations"`
	}](t, rec)
	assert.False(t, body.Valid)
	require.Len(t, body.Violations, 2)
	assert.Equal(t, "primary_ineligible", body.Violations[0].Rule)
	assert.Equal(t, "assistant_pairing", body.Violations[1].Rule)
}

func TestSimulateEndpoint(t *testing.T) {
	s := newTestServer(t, 100)
	rec := s.do(t, http.MethodPost, "/api/simulate", models.SimulateInput{
		WeekOf:    "2026-03-02",
		Seed:      seedPtr(3),
		Trials:    200,
		Part:      models.Part{ID: "reading", Type: models.PartBibleReading},
		Pool:      roster()[:2],
		Histories: histories(),
	}, s.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Trials    int            `json:"trials"`
		Frequency map[string]int `json:"frequency"`
	}](t, rec)
	assert.Equal(t, 200, body.Trials)
	assert.Equal(t, 200, body.Frequency["m1"]+body.Frequency["m2"])
}

func TestGenerateCSV(t *testing.T) {
	s := newTestServer(t, 100)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("week_of", "2026-03-02"))
	require.NoError(t, w.WriteField("seed", "11"))
	files := map[string]string{
		"program_file": "id,order,type\nreading,1,bible_reading\nstart,2,starting_conversation\nstudy,3,congregation_study\n",
		"roster_file":  "id,name,gender,qualifications\nm1,Mark,male,\nf1,Anna,female,starting\nf2,Ruth,female,\n",
		"history_file": "student_id,assignment_count_recent,last_assignment_date\nm1,1,2026-02-16\nf1,0,\nf2,2,2026-02-23\n",
	}
	for field, content := range files {
		part, err := w.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/generate/csv", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.key)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		CSV string `json:"csv"`
	}](t, rec)
	lines := strings.Split(strings.TrimSpace(body.CSV), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "part_order,part_id,part_type,student_id,student_name,assistant_id,assistant_name,status,details", lines[0])
	assert.Equal(t, "1,reading,bible_reading,m1,Mark,,,designated,", lines[1])
	assert.Equal(t, "2,start,starting_conversation,f1,Anna,f2,Ruth,designated,", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "3,study,congregation_study,,,,,no_eligible_primary,"), lines[3])
}

func TestParseRosterErrors(t *testing.T) {
	_, err := ParseRoster(strings.NewReader("id,gender\ns1,other\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ParseRoster(strings.NewReader("id,name\ns1,x\n"))
	assert.ErrorContains(t, err, `missing column "gender"`)

	students, err := ParseRoster(strings.NewReader("id,gender,active,qualifications,parent_ids\ns1,Female,false,starting|following,p1|p2\n"))
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, models.GenderFemale, students[0].Gender)
	assert.False(t, students[0].Active)
	assert.Equal(t, []models.Qualification{models.QualStarting, models.QualFollowing}, students[0].Qualifications)
	assert.Equal(t, []string{"p1", "p2"}, students[0].Family.ParentIDs)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 100)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil, "").Code)

	input := models.GenerateInput{WeekOf: "2026-03-02", Program: program(), Roster: roster(), Histories: histories()}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/generate", input, s.key).Code)

	rec := s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `generation_runs_total{outcome="complete"} 1`)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
}

func (s *testServer) upload(t *testing.T, fields, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	for name, content := range files {
		part, err := w.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/generate/csv", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.key)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestGenerateRejectsUnknownRuleValues(t *testing.T) {
	s := newTestServer(t, 100)
	women := []models.Student{{ID: "f1", Gender: models.GenderFemale, Active: true}}
	hist := map[string]models.HistoryWindow{"f1": {StudentID: "f1"}}

	tests := []struct {
		name string
		part models.Part
	}{
		{"hyphenated gender", models.Part{ID: "p1", Order: 1, Type: "service_talk", RequiredGender: "male-only"}},
		{"unknown pairing", models.Part{ID: "p1", Order: 1, Type: models.PartStartingConversation, AssistantGenderRule: "any"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/generate", models.GenerateInput{
				WeekOf: "2026-03-02", Program: []models.Part{tt.part}, Roster: women, Histories: hist,
			}, s.key)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", decode[errorBody](t, rec).Error.Code)
		})
	}

	rec := s.do(t, http.MethodPost, "/api/generate", models.GenerateInput{
		WeekOf:    "2026-03-02",
		Program:   []models.Part{{ID: "p1", Order: 1, Type: "service_talk", RequiredGender: models.GenderMaleOnly}},
		Roster:    women,
		Histories: hist,
	}, s.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[models.GenerateResponse](t, rec)
	assert.Empty(t, resp.Assignments)
	require.Len(t, resp.Unresolved, 1)
	assert.Equal(t, models.ReasonNoEligiblePrimary, resp.Unresolved[0].Reason)
}

func TestGenerateCSVRejectsUnknownRuleValues(t *testing.T) {
	s := newTestServer(t, 100)
	rec := s.upload(t, map[string]string{"week_of": "2026-03-02"}, map[string]string{
		"program_file": "id,order,type,required_gender\np1,1,service_talk,male-only\n",
		"roster_file":  "id,name,gender\nf1,Anna,female\n",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Message, "program_file: line 2: required_gender")
}

func TestParseProgramRuleValues(t *testing.T) {
	_, err := ParseProgram(strings.NewReader("id,order,type,required_gender\np1,1,talk,male-only\n"))
	assert.ErrorContains(t, err, "line 2: required_gender")

	_, err = ParseProgram(strings.NewReader("id,order,type,assistant_gender_rule\np1,1,following_up,opposite\n"))
	assert.ErrorContains(t, err, "line 2: assistant_gender_rule")

	parts, err := ParseProgram(strings.NewReader(
		"id,order,type,required_gender,requires_assistant,assistant_gender_rule\n" +
			"p1,1,service_talk,male_only,true,same_gender_or_family\n" +
			"p2,2,talk,,,\n"))
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, models.GenderMaleOnly, parts[0].RequiredGender)
	assert.True(t, parts[0].RequiresAssistant)
	assert.Equal(t, models.AssistantSameGenderOrFamily, parts[0].AssistantGenderRule)
	assert.Empty(t, parts[1].RequiredGender)
}

func TestAPIKeyLastUsedFailureIsLogged(t *testing.T) {
	s := newTestServer(t, 100)
	core, logs := observer.New(zapcore.WarnLevel)
	s.h.Logger = zap.New(core)

	require.NoError(t, s.h.DB.Callback().Update().Before("gorm:update").Register("fail_api_keys", func(tx *gorm.DB) {
		if tx.Statement.Table == "api_keys" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	rec := s.do(t, http.MethodGet, "/api/usage", nil, s.key)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries := logs.FilterMessage("failed to update key last_used").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "disk full", entries[0].ContextMap()["error"])
}
