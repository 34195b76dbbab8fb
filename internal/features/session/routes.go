package session

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches session endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, mw *Middleware) {
	router.POST("/auth/login", handler.Login)

	authed := router.Group("/session", mw.Require())
	authed.GET("", handler.Me)
	authed.DELETE("", handler.Logout)
}
