package controller

import (
	"time"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/service"
	"tutorhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ContentController serves homework, quizzes and lessons. The kind comes
// from the :kind path segment.
type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

// GenerateContentRequest
// swagger:model GenerateContentRequest
type GenerateContentRequest struct {
	StudentID        uint       `json:"studentId" binding:"required"`
	SkillID          *uint      `json:"skillId"`
	Topic            string     `json:"topic"`
	Difficulty       string     `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Count            int        `json:"count" binding:"omitempty,min=1"`
	SourceDocumentID string     `json:"sourceDocumentId"`
	Instructions     string     `json:"instructions" binding:"max=4000"`
	DueAt            *time.Time `json:"dueAt"`
	Title            string     `json:"title" binding:"max=255"`
}

type QuestionEditRequest struct {
	ID             string   `json:"id" binding:"required"`
	Prompt         *string  `json:"prompt"`
	Choices        []string `json:"choices"`
	AnswerIndex    *int     `json:"answerIndex"`
	ExpectedAnswer *string  `json:"expectedAnswer"`
	Explanation    *string  `json:"explanation"`
}

type UpdateDraftRequest struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Body        *string               `json:"body"`
	DueAt       *time.Time            `json:"dueAt"`
	Questions   []QuestionEditRequest `json:"questions" binding:"dive"`
}

type GenerateMoreRequest struct {
	Count        int    `json:"count" binding:"omitempty,min=1"`
	Instructions string `json:"instructions" binding:"max=4000"`
}

type SubmitRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

type GradeRequest struct {
	Score    *float64        `json:"score"`
	Verdicts map[string]bool `json:"verdicts"`
}

type CompleteRequest struct {
	Score *float64 `json:"score" binding:"required"`
}

type ListContentRequest struct {
	Status string `form:"status"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Generate godoc
// @Summary Generate a draft for a student
// @Description Picks a skill when none is given and asks the generation backend for questions
// @Tags content
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param kind path string true "homework, quizzes or lessons"
// @Param request body GenerateContentRequest true "Generation request"
// @Success 201 {object} util.Response{data=model.ContentItem} "Created"
// @Failure 400 {object} util.Response "Bad Request"
// @Failure 422 {object} util.Response "Nothing usable was generated"
// @Failure 503 {object} util.Response "Generation backend unavailable"
// @Router /api/tutor/content/{kind}/generate [post]
func (c *ContentController) Generate(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	var req GenerateContentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	item, err := c.ContentService.Generate(ctx.Request.Context(), actor, service.GenerationRequest{
		Kind:             kind,
		StudentID:        req.StudentID,
		SkillID:          req.SkillID,
		Topic:            req.Topic,
		Difficulty:       req.Difficulty,
		Count:            req.Count,
		SourceDocumentID: req.SourceDocumentID,
		Instructions:     req.Instructions,
		DueAt:            req.DueAt,
		Title:            req.Title,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, item)
}

// List godoc
// @Summary List content visible to the caller
// @Tags content
// @Produce json
// @Security ApiKeyAuth
// @Param kind path string true "homework, quizzes or lessons"
// @Param status query string false "draft, assigned, submitted, graded or completed"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/content/{kind} [get]
func (c *ContentController) List(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	var req ListContentRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	var status model.ContentStatus
	if req.Status != "" {
		if status, ok = model.ParseContentStatus(req.Status); !ok {
			util.BadRequest(ctx, "unknown status "+req.Status)
			return
		}
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	items, total, err := c.ContentService.List(ctx.Request.Context(), actor, kind, status, req.Page, req.Limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: items, Total: total, Page: req.Page, Limit: req.Limit})
}

func (c *ContentController) Get(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	item, err := c.ContentService.Get(ctx.Request.Context(), actor, kind, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

// UpdateDraft godoc
// @Summary Edit a draft
// @Description Only drafts can be edited; other states return 409
// @Tags content
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param kind path string true "homework, quizzes or lessons"
// @Param id path string true "Item ID"
// @Param request body UpdateDraftRequest true "Fields to change"
// @Success 200 {object} util.Response{data=model.ContentItem} "Success"
// @Failure 409 {object} util.Response "Not a draft"
// @Router /api/tutor/content/{kind}/{id} [put]
func (c *ContentController) UpdateDraft(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	var req UpdateDraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	upd := service.DraftUpdate{
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		DueAt:       req.DueAt,
	}
	for _, q := range req.Questions {
		upd.Questions = append(upd.Questions, service.QuestionEdit{
			ID:             q.ID,
			Prompt:         q.Prompt,
			Choices:        q.Choices,
			AnswerIndex:    q.AnswerIndex,
			ExpectedAnswer: q.ExpectedAnswer,
			Explanation:    q.Explanation,
		})
	}

	item, err := c.ContentService.UpdateDraft(ctx.Request.Context(), actor, kind, ctx.Param("id"), upd)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

func (c *ContentController) RemoveQuestion(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	item, err := c.ContentService.RemoveQuestion(ctx.Request.Context(), actor, kind, ctx.Param("id"), ctx.Param("questionId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

func (c *ContentController) GenerateMore(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	var req GenerateMoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	item, err := c.ContentService.GenerateMore(ctx.Request.Context(), actor, kind, ctx.Param("id"), req.Count, req.Instructions)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

// Assign godoc
// @Summary Assign a draft to its student
// @Tags content
// @Produce json
// @Security ApiKeyAuth
// @Param kind path string true "homework, quizzes or lessons"
// @Param id path string true "Item ID"
// @Success 200 {object} util.Response{data=model.ContentItem} "Success"
// @Failure 409 {object} util.Response "Invalid transition"
// @Router /api/tutor/content/{kind}/{id}/assign [post]
func (c *ContentController) Assign(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	item, err := c.ContentService.Assign(ctx.Request.Context(), actor, kind, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

func (c *ContentController) Submit(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	item, err := c.ContentService.Submit(ctx.Request.Context(), actor, kind, ctx.Param("id"), req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

// Grade godoc
// @Summary Grade a homework or quiz
// @Description Multiple-choice answers are checked automatically; verdicts or an explicit score cover the rest
// @Tags content
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param kind path string true "homework or quizzes"
// @Param id path string true "Item ID"
// @Param request body GradeRequest false "Score override or per-question verdicts"
// @Success 200 {object} util.Response{data=model.ContentItem} "Success"
// @Failure 409 {object} util.Response "Invalid transition"
// @Router /api/tutor/content/{kind}/{id}/grade [post]
func (c *ContentController) Grade(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	var req GradeRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	item, err := c.ContentService.Grade(ctx.Request.Context(), actor, kind, ctx.Param("id"), service.GradeRequest{
		Score:    req.Score,
		Verdicts: req.Verdicts,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

func (c *ContentController) Complete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	item, err := c.ContentService.Complete(ctx.Request.Context(), actor, kind, ctx.Param("id"), req.Score)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

func (c *ContentController) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}

	if err := c.ContentService.Delete(ctx.Request.Context(), actor, kind, ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": true})
}
