package controller

import (
	"errors"
	"net/http"
	"time"
	"tutorhub_backend/internal/service"
	"tutorhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	DecayService *service.DecayService
}

func NewAdminController(decayService *service.DecayService) *AdminController {
	return &AdminController{DecayService: decayService}
}

// RunDecay godoc
// @Summary Run mastery decay now
// @Description Runs synchronously and returns the run report
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.DecayReport} "Success"
// @Failure 409 {object} util.Response "A run is already in progress"
// @Router /api/admin/decay/run [post]
func (c *AdminController) RunDecay(ctx *gin.Context) {
	report, err := c.DecayService.RunOnce(ctx.Request.Context(), time.Now())
	if errors.Is(err, service.ErrDecayRunning) {
		util.Error(ctx, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

func (c *AdminController) LastDecay(ctx *gin.Context) {
	report := c.DecayService.LastReport()
	if report == nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, report)
}
