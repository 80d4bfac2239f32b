package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"leaseqa/internal/service"
	"leaseqa/pkg/logger"
)

// API provides the HTTP handlers for the question-answering service.
type API struct {
	service *service.Service
	logger  *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(service *service.Service, logger *logger.Logger) *API {
	return &API{service: service, logger: logger}
}

// IndexHandler returns a short banner so hitting the root in a browser shows
// the service is up.
func (a *API) IndexHandler(c *gin.Context) {
	c.String(http.StatusOK, "Lease Document Q&A service. POST a JSON question to /ask.")
}

// StatusHandler reports the initialization status.
func (a *API) StatusHandler(c *gin.Context) {
	status, ready := a.service.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"ready":  ready,
	})
}

// HealthHandler is the liveness probe.
func (a *API) HealthHandler(c *gin.Context) {
	status, ready := a.service.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":                "healthy",
		"rag_initialized":       ready,
		"initialization_status": status,
	})
}

// AskHandler answers one question.
func (a *API) AskHandler(c *gin.Context) {
	var payload struct {
		Question string `json:"question"`
		Compare  bool   `json:"compare"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	question := strings.TrimSpace(payload.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No question provided"})
		return
	}

	result, err := a.service.Ask(c.Request.Context(), question, payload.Compare)
	if err != nil {
		if errors.Is(err, service.ErrNotReady) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "RAG system not initialized. Please wait and try again.",
			})
			return
		}
		a.logger.Error("Failed to answer question: " + err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing question: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
