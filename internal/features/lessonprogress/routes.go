package lessonprogress

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches lesson progress endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, auth ...gin.HandlerFunc) {
	lessons := router.Group("/lessons/:lessonId", auth...)
	lessons.GET("/progress", handler.Get)
	lessons.PUT("/progress", handler.Save)
	lessons.POST("/complete", handler.Complete)

	router.Group("", auth...).GET("/lesson-progress", handler.List)
}
