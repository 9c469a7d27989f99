package httpapi

import (
	"net/http"
	"strconv"

	"dialer-platform/internal/lists"

	"github.com/gin-gonic/gin"
)

// --- Call lists ---

func (h Handlers) GetLists(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	f := lists.ListFilter{Search: c.Query("search")}
	if v := c.Query("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "is_active must be a boolean"})
			return
		}
		f.IsActive = &b
	}
	out, err := h.Lists.GetLists(c.Request.Context(), wid, f)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lists": out})
}

func (h Handlers) GetList(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	l, err := h.Lists.GetList(c.Request.Context(), wid, c.Param("list_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h Handlers) CreateList(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	var req lists.CreateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Lists.CreateList(c.Request.Context(), wid, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) UpdateList(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	var req lists.UpdateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Lists.UpdateList(c.Request.Context(), wid, c.Param("list_id"), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DeleteList(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	if err := h.Lists.DeleteList(c.Request.Context(), wid, c.Param("list_id")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RefreshList recomputes a dynamic list's membership. Returns 409 while
// another refresh of the same list holds the lock.
func (h Handlers) RefreshList(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	out, err := h.Lists.RefreshList(c.Request.Context(), wid, c.Param("list_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// PopulateLists refreshes every active dynamic list, highest priority first.
func (h Handlers) PopulateLists(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	dryRun := false
	if v := c.Query("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "dry_run must be a boolean"})
			return
		}
		dryRun = b
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	out, err := h.Lists.PopulateLists(c.Request.Context(), wid, dryRun, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type addItemRequest struct {
	TargetID   string `json:"target_id"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

func (h Handlers) AddItem(c *gin.Context) {
	wid, _, ok := identity(c)
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	it, err := h.Lists.AddItem(c.Request.Context(), wid, c.Param("list_id"), req.TargetID, req.AssignedTo, lists.ItemSourceManual)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}
