package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"course-racer/internal/history"
	"course-racer/internal/model"
)

// GetStatus returns the status view as of the last refresh tick, in display order.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"units": h.board.Snapshot()})
}

type availabilityResponse struct {
	CourseID string              `json:"course_id"`
	Classes  []model.ClassRecord `json:"classes"`
}

// GetAvailability lists every tracked course that currently has a free class.
func (h *Handler) GetAvailability(c *gin.Context) {
	snapshot := h.avail.Snapshot()
	out := make([]availabilityResponse, 0, len(snapshot))
	for _, id := range h.avail.Courses() {
		classes, ok := snapshot[id]
		if !ok {
			continue
		}
		out = append(out, availabilityResponse{CourseID: id, Classes: classes})
	}
	c.JSON(http.StatusOK, gin.H{"courses": out})
}

// GetAttempts returns recent enrollment attempts, newest first.
// Query parameters: course, success (bool), limit.
func (h *Handler) GetAttempts(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attempt history is not configured"})
		return
	}

	q := history.Query{CourseID: c.Query("course")}
	if raw := c.Query("success"); raw != "" {
		ok, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "success must be a boolean"})
			return
		}
		q.SuccessOnly = ok
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		q.Limit = n
	}

	attempts, err := h.history.Attempts(c.Request.Context(), q)
	if err != nil {
		h.log.Error("failed to load attempts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}
