package httpapi

import (
	"net/http"
	"strconv"

	"dialer-platform/internal/lists"
	"dialer-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// --- Dialing queue ---

func (h Handlers) GetItems(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	f := lists.ItemFilter{Viewer: v, Status: lists.ItemStatus(c.Query("status"))}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}
	items, err := h.Queue.GetItems(c.Request.Context(), wid, c.Param("list_id"), f)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// NextItem claims the next eligible item. An empty queue is not an error:
// the agent's UI polls this and treats {"empty": true} as "nothing to dial".
func (h Handlers) NextItem(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	var (
		it    lists.Item
		found bool
		err   error
	)
	if listID := c.Query("list_id"); listID != "" {
		it, found, err = h.Queue.NextItem(c.Request.Context(), wid, listID, v)
	} else {
		it, found, err = h.Queue.NextItemAny(c.Request.Context(), wid, v)
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"empty": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"empty": false, "item": it})
}

// ReleaseItem puts a claimed item back to pending without recording an attempt.
func (h Handlers) ReleaseItem(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	it, err := h.Queue.ReleaseItem(c.Request.Context(), wid, c.Param("item_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h Handlers) GetAttempts(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	attempts, err := h.Queue.GetAttempts(c.Request.Context(), wid, c.Param("item_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

type bulkAssignRequest struct {
	ItemIDs []string `json:"item_ids"`

	// AgentID empty means unassign.
	AgentID string `json:"agent_id"`
}

func (h Handlers) BulkAssign(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	var req bulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.ItemIDs) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "item_ids required"})
		return
	}
	out, err := h.Queue.BulkAssign(c.Request.Context(), wid, req.ItemIDs, req.AgentID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type dialRequest struct {
	To     string `json:"to"`
	ItemID string `json:"item_id,omitempty"`
}

// Dial triggers a click-to-dial against the configured telephony provider.
func (h Handlers) Dial(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	if h.Provider == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "telephony not configured"})
		return
	}
	var req dialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Provider.Dial(c.Request.Context(), telephony.DialRequest{
		WorkspaceID: wid,
		AgentID:     v.UserID,
		To:          req.To,
		ItemID:      req.ItemID,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
