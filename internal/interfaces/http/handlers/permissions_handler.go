package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/domain/session"
)

// SnapshotSource exposes the live session.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// ProfileViewer exposes the derived permission view.
type ProfileViewer interface {
	Current() services.ProfileView
}

// PermissionsHandler serves the permission inspection endpoint.
type PermissionsHandler struct {
	session   SnapshotSource
	profiles  ProfileViewer
	evaluator access.Evaluator
}

func NewPermissionsHandler(sess SnapshotSource, profiles ProfileViewer, evaluator access.Evaluator) *PermissionsHandler {
	return &PermissionsHandler{session: sess, profiles: profiles, evaluator: evaluator}
}

// PermissionsResponse is the body of GET /debug/permissions.
type PermissionsResponse struct {
	Authenticated      bool              `json:"authenticated"`
	UserID             string            `json:"userId,omitempty"`
	Email              string            `json:"email,omitempty"`
	Role               string            `json:"role,omitempty"`
	Capabilities       []string          `json:"capabilities"`
	Restrictions       []string          `json:"restrictions"`
	IsAdmin            bool              `json:"isAdmin"`
	IsAccountant       bool              `json:"isAccountant"`
	IsDriver           bool              `json:"isDriver"`
	AwaitingAssignment bool              `json:"awaitingAssignment"`
	Checks             []access.Decision `json:"checks"`
}

// Permissions returns the current permission snapshot and sample decisions.
// GET /debug/permissions
func (h *PermissionsHandler) Permissions(c *gin.Context) {
	snap := h.session.Snapshot()
	view := h.profiles.Current()

	resp := PermissionsResponse{
		Authenticated:      snap.IsAuthenticated,
		Capabilities:       []string{},
		Restrictions:       []string{},
		IsAdmin:            view.IsAdmin,
		IsAccountant:       view.IsAccountant,
		IsDriver:           view.IsDriver,
		AwaitingAssignment: view.AwaitingAssignment,
		Checks:             h.evaluator.Diagnose(snap.Permissions),
	}
	if snap.User != nil {
		resp.UserID = snap.User.ID
		resp.Email = snap.User.Email
	}
	if p := snap.Permissions; p != nil {
		resp.Role = p.Role
		if p.Capabilities != nil {
			resp.Capabilities = p.Capabilities
		}
		if p.Restrictions != nil {
			resp.Restrictions = p.Restrictions
		}
	}

	c.JSON(http.StatusOK, resp)
}
