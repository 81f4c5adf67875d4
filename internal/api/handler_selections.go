package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"course-racer/internal/model"
)

type dropSelectionRequest struct {
	Bucket   string `json:"bucket" binding:"required"`
	CourseID string `json:"course_id" binding:"required"`
	ClassID  string `json:"class_id" binding:"required"`
	Secret   string `json:"secret"`
}

// DropSelection withdraws an existing selection. Without a secret, the one carried by the
// class in the availability store is used when the class is listed there.
func (h *Handler) DropSelection(c *gin.Context) {
	var req dropSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.dropper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session is not available"})
		return
	}
	code, ok := h.dropper.TypeCode(req.Bucket)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown bucket " + req.Bucket})
		return
	}

	rec := model.ClassRecord{CourseID: req.CourseID, ClassID: req.ClassID, Secret: req.Secret}
	if rec.Secret == "" {
		if classes, ok := h.avail.Lookup(req.CourseID); ok {
			for _, cl := range classes {
				if cl.ClassID == req.ClassID {
					rec.Secret = cl.Secret
					break
				}
			}
		}
	}

	outcome, err := h.dropper.Drop(c.Request.Context(), code, rec)
	if err != nil {
		h.log.Warn("drop failed", zap.String("course", req.CourseID), zap.String("class", req.ClassID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("drop submitted",
		zap.String("course", req.CourseID), zap.String("class", req.ClassID),
		zap.Bool("success", outcome.Success), zap.String("message", outcome.Message))

	statusCode := http.StatusOK
	if !outcome.Success {
		statusCode = http.StatusConflict
	}
	c.JSON(statusCode, gin.H{"success": outcome.Success, "message": outcome.Message})
}
