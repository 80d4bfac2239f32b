package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter builds the gin engine with all routes registered.
func SetupRouter(api *API) *gin.Engine {
	router := gin.Default()
	RegisterRoutes(router, api)
	return router
}

// RegisterRoutes registers all routes for the question-answering service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/", api.IndexHandler)
	router.GET("/status", api.StatusHandler)
	router.GET("/health", api.HealthHandler)
	router.POST("/ask", api.AskHandler)
}
