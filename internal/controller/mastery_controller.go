package controller

import (
	"context"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/service"
	"tutorhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MasteryController struct {
	MasteryService *service.MasteryService
	Selector       *service.SkillSelector
	UserRepo       *repository.UserRepository
}

func NewMasteryController(masteryService *service.MasteryService, selector *service.SkillSelector, userRepo *repository.UserRepository) *MasteryController {
	return &MasteryController{MasteryService: masteryService, Selector: selector, UserRepo: userRepo}
}

// canSee reports whether actor may read the student's standing: the
// student, their parent, tutors and admins.
func (c *MasteryController) canSee(ctx context.Context, actor service.Actor, studentID uint) (bool, error) {
	switch actor.Role {
	case model.Admin, model.Tutor:
		return true, nil
	case model.Student:
		return actor.ID == studentID, nil
	case model.Parent:
		return c.UserRepo.IsParentOf(ctx, actor.ID, studentID)
	}
	return false, nil
}

func (c *MasteryController) authorize(ctx *gin.Context) (uint, bool) {
	actor, ok := currentActor(ctx)
	if !ok {
		return 0, false
	}
	studentID, ok := uintParam(ctx, "studentId")
	if !ok {
		return 0, false
	}
	allowed, err := c.canSee(ctx.Request.Context(), actor, studentID)
	if err != nil {
		util.HandleError(ctx, err)
		return 0, false
	}
	if !allowed {
		util.Forbidden(ctx)
		return 0, false
	}
	return studentID, true
}

// GetMastery godoc
// @Summary A student's mastery per skill, weakest first
// @Description Values include decay that has not been written yet
// @Tags mastery
// @Produce json
// @Security ApiKeyAuth
// @Param studentId path int true "Student ID"
// @Success 200 {object} util.Response{data=[]service.MasteryView} "Success"
// @Router /api/students/{studentId}/mastery [get]
func (c *MasteryController) GetMastery(ctx *gin.Context) {
	studentID, ok := c.authorize(ctx)
	if !ok {
		return
	}

	views, err := c.Selector.Rank(ctx.Request.Context(), studentID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, views)
}

// NextSkill godoc
// @Summary The skill a student should practise next
// @Description Weakest projected mastery first; skillId pins the choice
// @Tags mastery
// @Produce json
// @Security ApiKeyAuth
// @Param studentId path int true "Student ID"
// @Param skillId query int false "Explicit skill"
// @Success 200 {object} util.Response "Success"
// @Failure 404 {object} util.Response "No skill available"
// @Router /api/students/{studentId}/next-skill [get]
func (c *MasteryController) NextSkill(ctx *gin.Context) {
	studentID, ok := c.authorize(ctx)
	if !ok {
		return
	}

	var explicit *uint
	if raw := ctx.Query("skillId"); raw != "" {
		if explicit = util.ParseUintPtr(raw); explicit == nil {
			util.BadRequest(ctx, "invalid skillId")
			return
		}
	}

	skill, err := c.Selector.Select(ctx.Request.Context(), studentID, explicit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	standing, err := c.Selector.Standing(ctx.Request.Context(), studentID, skill)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"skill":         skill,
		"mastery":       standing.Mastery,
		"storedMastery": standing.StoredMastery,
		"lastAssessed":  standing.LastAssessed,
	})
}
