package catalog

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches catalog endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, auth ...gin.HandlerFunc) {
	group := router.Group("", auth...)
	group.GET("/records", handler.Records)
	group.PATCH("/progress/:progressId/status", handler.UpdateStatus)
}
