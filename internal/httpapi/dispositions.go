package httpapi

import (
	"net/http"

	"dialer-platform/internal/dispositions"

	"github.com/gin-gonic/gin"
)

// --- Dispositions & dashboard ---

func (h Handlers) GetDispositions(c *gin.Context) {
	if _, _, ok := identity(c); !ok {
		return
	}
	out, err := h.Catalog.List(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispositions": out})
}

type applyDispositionRequest struct {
	ListID string `json:"list_id"`
	ItemID string `json:"item_id"`
	Code   string `json:"code"`
	Notes  string `json:"notes,omitempty"`
}

// ApplyDisposition records a call outcome. A Degraded result still returns
// 200: the attempt is durable, side-effect failures are reported per effect.
func (h Handlers) ApplyDisposition(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	var req applyDispositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Dispositions.Apply(c.Request.Context(), dispositions.ApplyRequest{
		WorkspaceID: wid,
		ListID:      req.ListID,
		ItemID:      req.ItemID,
		Code:        req.Code,
		Notes:       req.Notes,
		AgentID:     v.UserID,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetDashboardStats(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	out, err := h.Reporting.DashboardStats(c.Request.Context(), wid, v)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
