package child

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kidshive/internal/apierr"
	"kidshive/internal/auth"
)

// Handler serves the child directory routes.
type Handler struct {
	svc *Service
}

// NewHandler creates a handler over svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the directory routes. r must already run auth.BearerAuth.
func RegisterRoutes(r gin.IRoutes, h *Handler) {
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleAssistant)
	admin := auth.RequireRole(auth.RoleAdmin)

	r.GET("/children", staff, h.list)
	r.POST("/children", admin, h.create)
	r.GET("/children/:id", auth.RequireStaffOrGuardian(h.svc, "id"), h.get)
	r.PATCH("/children/:id", admin, h.update)
	r.DELETE("/children/:id", admin, h.delete)
	r.GET("/me/children", auth.RequireRole(auth.RoleParent), h.mine)
}

func (h *Handler) list(c *gin.Context) {
	children, err := h.svc.ListChildren(c.Request.Context())
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children})
}

func (h *Handler) get(c *gin.Context) {
	child, err := h.svc.GetChild(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, child)
}

func (h *Handler) create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apierr.Write(c, apierr.Invalid("invalid body: %v", err))
		return
	}
	child, err := h.svc.CreateChild(c.Request.Context(), in)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, child)
}

func (h *Handler) update(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apierr.Write(c, apierr.Invalid("invalid body: %v", err))
		return
	}
	child, err := h.svc.UpdateChild(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, child)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.DeleteChild(c.Request.Context(), c.Param("id")); err != nil {
		apierr.Write(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) mine(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	children, err := h.svc.ChildrenOfParent(c.Request.Context(), claims.Subject)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children})
}
