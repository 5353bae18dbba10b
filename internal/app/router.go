package app

import (
	"tutorhub_backend/internal/middleware"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. public
	router.GET("/api/health", c.health.HealthCheck)

	// 2. any signed-in user
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(func() string { return a.currentConfig().JWT.Secret }))
	{
		a.registerSharedRoutes(authGroup, c)
		a.registerTutorRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

// registerSharedRoutes serves every role; visibility is decided per item.
func (a *App) registerSharedRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/skills", c.skill.List)

	rg.GET("/students/:studentId/mastery", c.mastery.GetMastery)
	rg.GET("/students/:studentId/next-skill", c.mastery.NextSkill)

	content := rg.Group("/content/:kind")
	{
		content.GET("", c.content.List)
		content.GET("/:id", c.content.Get)
		content.POST("/:id/submit", middleware.RoleMiddleware(model.Student), c.content.Submit)
		content.POST("/:id/complete", middleware.RoleMiddleware(model.Student, model.Tutor), c.content.Complete)
	}
}

func (a *App) registerTutorRoutes(rg *gin.RouterGroup, c *controllers) {
	tutor := rg.Group("/tutor")
	tutor.Use(middleware.RoleMiddleware(model.Tutor))
	{
		tutor.POST("/skills", c.skill.Create)
		tutor.POST("/skills/suggest", c.skill.Suggest)

		tutor.POST("/documents", c.document.Upload)
		tutor.GET("/documents/:id", c.document.Get)

		content := tutor.Group("/content/:kind")
		{
			content.POST("/generate", c.content.Generate)
			content.PUT("/:id", c.content.UpdateDraft)
			content.DELETE("/:id", c.content.Delete)
			content.DELETE("/:id/questions/:questionId", c.content.RemoveQuestion)
			content.POST("/:id/generate-more", c.content.GenerateMore)
			content.POST("/:id/assign", c.content.Assign)
			content.POST("/:id/grade", c.content.Grade)
		}
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/decay/run", c.admin.RunDecay)
		admin.GET("/decay/last", c.admin.LastDecay)
	}
}
