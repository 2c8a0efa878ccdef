package activity

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Renderer renders a page inside the shared layout.
type Renderer interface {
	Render(c *gin.Context, status int, name string, data gin.H)
}

type ActivityController struct {
	service  ActivityServiceInterface
	renderer Renderer
}

func NewActivityController(service ActivityServiceInterface, renderer Renderer) *ActivityController {
	return &ActivityController{
		service:  service,
		renderer: renderer,
	}
}

// ListActivity handles GET /api/v1/activity?limit=
func (ac *ActivityController) ListActivity(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	entries, err := ac.service.Recent(c.Request.Context(), limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to list activity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list activity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// ActivityPage handles GET /activity
func (ac *ActivityController) ActivityPage(c *gin.Context) {
	entries, err := ac.service.Recent(c.Request.Context(), DefaultLimit)
	if err != nil {
		logrus.WithError(err).Error("Failed to list activity")
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	ac.renderer.Render(c, http.StatusOK, "activity.tmpl", gin.H{
		"Title":   "Recent Activity",
		"Entries": entries,
	})
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return DefaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return limit, true
}
