package attendance

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"kidshive/internal/apierr"
	"kidshive/internal/auth"
)

// AuditReader lists discarded logs for the admin view.
type AuditReader interface {
	ListForChild(ctx context.Context, childID string) ([]DiscardedLog, error)
}

// Handler serves the attendance and discarded-log routes.
type Handler struct {
	svc   *Service
	audit AuditReader
}

// NewHandler creates a handler. audit may be nil, in which case the discarded-log list is empty.
func NewHandler(svc *Service, audit AuditReader) *Handler {
	return &Handler{svc: svc, audit: audit}
}

// RegisterRoutes mounts the attendance routes. r must already run auth.BearerAuth.
func RegisterRoutes(r gin.IRoutes, h *Handler, guardians auth.Guardians) {
	r.GET("/children/:id/attendance", auth.RequireStaffOrGuardian(guardians, "id"), h.getRange)
	r.POST("/children/:id/attendance", auth.RequireRole(auth.RoleAdmin, auth.RoleAssistant), h.upsert)
	r.GET("/children/:id/discarded-logs", auth.RequireRole(auth.RoleAdmin), h.discardedLogs)
}

func (h *Handler) getRange(c *gin.Context) {
	recs, err := h.svc.GetAttendanceRange(c.Request.Context(), c.Param("id"), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *Handler) upsert(c *gin.Context) {
	var p Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		apierr.Write(c, apierr.Invalid("invalid body: %v", err))
		return
	}
	rec, err := h.svc.UpsertAttendance(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) discardedLogs(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusOK, gin.H{"logs": []DiscardedLog{}})
		return
	}
	logs, err := h.audit.ListForChild(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
