package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/middleware"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/service"
	"tutorhub_backend/internal/testutil"
	"tutorhub_backend/internal/util"
	"tutorhub_backend/pkg/llm"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiFixture struct {
	router  *gin.Engine
	db      *gorm.DB
	mock    *llm.MockProvider
	tutor   *model.User
	student *model.User
	parent  *model.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)

	users := repository.NewUserRepository(db)
	skills := repository.NewSkillRepository(db)
	masteryRepo := repository.NewMasteryRepository(db)

	genCfg := config.GenerationConfig{MaxQuestions: 20, DefaultDueDays: 7, MaxTokens: 2048, MaxTopicSuggests: 10}
	mastery := service.NewMasteryService(masteryRepo, skills, service.NewDecaySettings(service.DecayPolicy{
		GraceWindow: 72 * time.Hour,
		HalfLife:    240 * time.Hour,
		BatchSize:   100,
		Workers:     1,
		LockTTL:     time.Minute,
	}))
	selector := service.NewSkillSelector(mastery, skills, []string{"Algebra"})
	mock := llm.NewMockProvider()
	generator := service.NewContentGenerator(mock, genCfg, time.Second)
	content := service.NewContentService(db, repository.NewContentRepository(db), users, skills,
		repository.NewDocumentRepository(db), mastery, selector, generator, genCfg)

	cc := NewContentController(content)
	mc := NewMasteryController(mastery, selector, users)

	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(func() string { return testSecret }))
	api.GET("/content/:kind", cc.List)
	api.GET("/content/:kind/:id", cc.Get)
	api.POST("/content/:kind/:id/submit", middleware.RoleMiddleware(model.Student), cc.Submit)
	api.POST("/content/:kind/:id/complete", middleware.RoleMiddleware(model.Student, model.Tutor), cc.Complete)
	api.GET("/students/:studentId/mastery", mc.GetMastery)
	api.GET("/students/:studentId/next-skill", mc.NextSkill)

	tutor := api.Group("/tutor", middleware.RoleMiddleware(model.Tutor))
	tutor.POST("/content/:kind/generate", cc.Generate)
	tutor.PUT("/content/:kind/:id", cc.UpdateDraft)
	tutor.POST("/content/:kind/:id/assign", cc.Assign)
	tutor.POST("/content/:kind/:id/grade", cc.Grade)

	parent := testutil.CreateUser(t, db, model.Parent, nil)
	return &apiFixture{
		router:  r,
		db:      db,
		mock:    mock,
		tutor:   testutil.CreateUser(t, db, model.Tutor, nil),
		student: testutil.CreateUser(t, db, model.Student, &parent.ID),
		parent:  parent,
	}
}

func (f *apiFixture) do(t *testing.T, user *model.User, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := util.GenerateJWT(user, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func questionsPayload(n int) json.RawMessage {
	qs := make([]map[string]any, n)
	for i := range qs {
		qs[i] = map[string]any{
			"type":         "multiple-choice",
			"prompt":       fmt.Sprintf("%d x 2 = ?", i+1),
			"choices":      []string{"1", fmt.Sprint((i + 1) * 2), "0"},
			"answer_index": 1,
		}
	}
	raw, _ := json.Marshal(map[string]any{"title": "Doubling", "questions": qs})
	return raw
}

func (f *apiFixture) generate(t *testing.T, kind string) model.ContentItem {
	t.Helper()
	f.mock.AddResponse(llm.MockResponse{Content: questionsPayload(4)})
	w, env := f.do(t, f.tutor, http.MethodPost, "/api/tutor/content/"+kind+"/generate", map[string]any{
		"studentId": f.student.ID,
		"count":     4,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var item model.ContentItem
	require.NoError(t, json.Unmarshal(env.Data, &item))
	return item
}

func TestContentAPIRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.do(t, nil, http.MethodGet, "/api/content/homework", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContentAPIRejectsWrongRoleAndKind(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.do(t, f.student, http.MethodPost, "/api/tutor/content/homework/generate", map[string]any{"studentId": f.student.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, f.tutor, http.MethodGet, "/api/content/essays", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, f.tutor, http.MethodGet, "/api/content/homework?status=Draft", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContentAPIHomeworkFlow(t *testing.T) {
	f := newAPIFixture(t)
	algebra := testutil.CreateSkill(t, f.db, "Algebra")

	item := f.generate(t, "homework")
	assert.Equal(t, model.StatusDraft, item.Status)
	require.Len(t, item.Questions, 4)
	base := "/api/content/homework/" + item.ID

	w, _ := f.do(t, f.student, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "drafts are hidden from students")

	w, env := f.do(t, f.tutor, http.MethodPost, "/api/tutor/content/homework/"+item.ID+"/assign", nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	w, env = f.do(t, f.tutor, http.MethodPut, "/api/tutor/content/homework/"+item.ID, map[string]any{"title": "late edit"})
	assert.Equal(t, http.StatusConflict, w.Code, env.Message)

	answers := map[string]string{}
	for i, q := range item.Questions {
		if i == 0 {
			answers[q.ID] = "A"
		} else {
			answers[q.ID] = "B"
		}
	}
	w, env = f.do(t, f.student, http.MethodPost, base+"/submit", map[string]any{"answers": answers})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	w, env = f.do(t, f.tutor, http.MethodPost, "/api/tutor/content/homework/"+item.ID+"/grade", nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var graded model.ContentItem
	require.NoError(t, json.Unmarshal(env.Data, &graded))
	assert.Equal(t, model.StatusGraded, graded.Status)
	require.NotNil(t, graded.Score)
	assert.InDelta(t, 0.75, *graded.Score, 1e-9)

	path := fmt.Sprintf("/api/students/%d/mastery", f.student.ID)
	w, env = f.do(t, f.parent, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var views []service.MasteryView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, algebra.ID, views[0].SkillID)
	assert.InDelta(t, 0.75, views[0].Mastery, 1e-9)

	stranger := testutil.CreateUser(t, f.db, model.Parent, nil)
	w, _ = f.do(t, stranger, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestContentAPIGenerationFailures(t *testing.T) {
	f := newAPIFixture(t)
	testutil.CreateSkill(t, f.db, "Algebra")
	path := "/api/tutor/content/quizzes/generate"
	body := map[string]any{"studentId": f.student.ID}

	f.mock.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	w, _ := f.do(t, f.tutor, http.MethodPost, path, body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	raw, _ := json.Marshal(map[string]any{"questions": []map[string]any{{"type": "essay", "prompt": "Discuss"}}})
	f.mock.AddResponse(llm.MockResponse{Content: raw})
	w, _ = f.do(t, f.tutor, http.MethodPost, path, body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = f.do(t, f.tutor, http.MethodPost, path, map[string]any{"studentId": f.student.ID, "difficulty": "brutal"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := f.do(t, f.tutor, http.MethodGet, "/api/content/quizzes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Zero(t, page.Total)
}

func TestContentAPICompleteNeedsScore(t *testing.T) {
	f := newAPIFixture(t)
	testutil.CreateSkill(t, f.db, "Algebra")

	item := f.generate(t, "lessons")
	w, env := f.do(t, f.tutor, http.MethodPost, "/api/tutor/content/lessons/"+item.ID+"/assign", nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	base := "/api/content/lessons/" + item.ID + "/complete"
	w, _ = f.do(t, f.student, http.MethodPost, base, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = f.do(t, f.student, http.MethodPost, base, map[string]any{"score": 0.5})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	w, _ = f.do(t, f.student, http.MethodPost, base, map[string]any{"score": 0.5})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = f.do(t, f.student, http.MethodGet, fmt.Sprintf("/api/students/%d/next-skill", f.student.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var next struct {
		Skill   model.Skill `json:"skill"`
		Mastery float64     `json:"mastery"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &next))
	assert.Equal(t, "Algebra", next.Skill.Name)
	assert.InDelta(t, 0.5, next.Mastery, 1e-9)
}
