package httpapi

import (
	"errors"
	"net/http"
	"time"

	"dialer-platform/internal/auth"
	"dialer-platform/internal/dispositions"
	"dialer-platform/internal/lists"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/records"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/sessions"
	"dialer-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth         *auth.Manager
	Lists        *lists.Service
	Queue        *queue.Service
	Sessions     *sessions.Service
	Dispositions *dispositions.Processor
	Catalog      dispositions.Catalog
	Reporting    *reporting.Service
	Provider     telephony.Provider
}

// identity pulls the authenticated caller out of the request context and
// builds the visibility scope that the list/queue layers filter by.
func identity(c *gin.Context) (workspaceID string, v lists.Viewer, ok bool) {
	ctx := c.Request.Context()
	wid, err := auth.WorkspaceID(ctx)
	if err != nil || wid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return "", lists.Viewer{}, false
	}
	uid, err := auth.UserID(ctx)
	if err != nil || uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return "", lists.Viewer{}, false
	}
	role, _ := auth.Role(ctx)
	return wid, lists.Viewer{UserID: uid, Manager: rbac.CanManage(role)}, true
}

// respondErr maps sentinel errors to HTTP statuses. Unknown errors are
// reported as 500 without leaking internals.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lists.ErrValidation),
		errors.Is(err, records.ErrFilter),
		errors.Is(err, queue.ErrInvalidRequest),
		errors.Is(err, sessions.ErrInvalid),
		errors.Is(err, telephony.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lists.ErrNotFound),
		errors.Is(err, records.ErrNotFound),
		errors.Is(err, sessions.ErrNotFound),
		errors.Is(err, dispositions.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, sessions.ErrNotOwner):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, lists.ErrConflict),
		errors.Is(err, sessions.ErrConflict),
		errors.Is(err, sessions.ErrSessionEnded),
		errors.Is(err, dispositions.ErrInvalidState):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, workspace_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	wid, _ := auth.WorkspaceID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "workspace_id": wid, "role": role})
}

// Convenience middleware bundles.

func RequireWorkspaceAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireWorkspace(), rbac.RequireAnyRole(roles...)}
}
