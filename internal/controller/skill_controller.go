package controller

import (
	"tutorhub_backend/internal/service"
	"tutorhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SkillController struct {
	SkillService *service.SkillService
}

func NewSkillController(skillService *service.SkillService) *SkillController {
	return &SkillController{SkillService: skillService}
}

type CreateSkillRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	TrackID     *uint  `json:"trackId"`
}

type SuggestSkillsRequest struct {
	Subject string `json:"subject" binding:"required,max=200"`
	Count   int    `json:"count" binding:"omitempty,min=1"`
	// Create adds the suggestions that are not in the catalogue yet.
	Create  bool  `json:"create"`
	TrackID *uint `json:"trackId"`
}

// List godoc
// @Summary List skills
// @Tags skills
// @Produce json
// @Security ApiKeyAuth
// @Param trackId query int false "Only skills of this track"
// @Success 200 {object} util.Response{data=[]model.Skill} "Success"
// @Router /api/skills [get]
func (c *SkillController) List(ctx *gin.Context) {
	skills, err := c.SkillService.List(ctx.Request.Context(), util.ParseUintPtr(ctx.Query("trackId")))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, skills)
}

func (c *SkillController) Create(ctx *gin.Context) {
	var req CreateSkillRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	skill, err := c.SkillService.Create(ctx.Request.Context(), req.Name, req.Description, req.TrackID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, skill)
}

// Suggest godoc
// @Summary Suggest the skills of a subject
// @Description Asks the generation backend; with create=true missing skills are added
// @Tags skills
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SuggestSkillsRequest true "Subject"
// @Success 200 {object} util.Response{data=[]service.SkillSuggestion} "Success"
// @Router /api/tutor/skills/suggest [post]
func (c *SkillController) Suggest(ctx *gin.Context) {
	var req SuggestSkillsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	suggestions, err := c.SkillService.Suggest(ctx.Request.Context(), req.Subject, req.Count, req.Create, req.TrackID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, suggestions)
}
