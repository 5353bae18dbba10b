package controller

import (
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/service"
	"tutorhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// currentActor reads the caller set by the auth middleware. It writes a
// 401 and returns false when there is none.
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{ID: user.UserID, Role: user.Role}, true
}

func kindParam(ctx *gin.Context) (model.ContentKind, bool) {
	kind, ok := model.ParseContentKind(ctx.Param("kind"))
	if !ok {
		util.NotFound(ctx)
		return "", false
	}
	return kind, true
}

func uintParam(ctx *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(ctx.Param(name))
	if id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}
