package util

import (
	"context"
	"errors"
	"net/http"
	"tutorhub_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusClientClosedRequest is the nginx convention for abandoned requests.
const StatusClientClosedRequest = 499

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	InternalServerError(c)
}

// HandleError maps engine errors onto HTTP statuses.
func HandleError(c *gin.Context, err error) {
	var (
		ve *ValidationError
		te *TransitionError
		ge *GenerationError
	)
	switch {
	case errors.As(err, &ve):
		BadRequest(c, ve.Error())
	case errors.As(err, &te):
		Error(c, http.StatusConflict, te.Error())
	case errors.Is(err, ErrConcurrentUpdate):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		Forbidden(c)
	case errors.Is(err, ErrNotFound):
		NotFound(c)
	case errors.Is(err, ErrGenerationEmptyResult):
		Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &ge):
		logger.Log.Warn("Generation backend failure", zap.Bool("retryable", ge.Retryable), zap.Error(ge.Err))
		if ge.Retryable {
			Error(c, http.StatusServiceUnavailable, ge.Error())
		} else {
			Error(c, http.StatusBadGateway, ge.Error())
		}
	case errors.Is(err, ErrNoSkillAvailable):
		Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		Error(c, StatusClientClosedRequest, "request canceled")
	default:
		LogInternalError(c, err)
	}
}
