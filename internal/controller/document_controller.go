package controller

import (
	"net/http"
	"tutorhub_backend/internal/service"
	"tutorhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DocumentController struct {
	DocumentService *service.DocumentService
}

func NewDocumentController(documentService *service.DocumentService) *DocumentController {
	return &DocumentController{DocumentService: documentService}
}

// Upload godoc
// @Summary Upload a PDF to generate content from
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "PDF document"
// @Success 201 {object} util.Response{data=model.Document} "Created"
// @Failure 400 {object} util.Response "Not a PDF, empty or too large"
// @Router /api/tutor/documents [post]
func (c *DocumentController) Upload(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	// leave room for the multipart envelope
	limit := c.DocumentService.Config.MaxBytes
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit+1<<20)

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "File is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.BadRequest(ctx, "Cannot read uploaded file")
		return
	}
	defer file.Close()

	doc, err := c.DocumentService.Upload(ctx.Request.Context(), actor, service.UploadRequest{
		Filename:     fileHeader.Filename,
		DeclaredType: fileHeader.Header.Get("Content-Type"),
		Size:         fileHeader.Size,
		Body:         file,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, doc)
}

func (c *DocumentController) Get(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	doc, err := c.DocumentService.Get(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, doc)
}
