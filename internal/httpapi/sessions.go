package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// --- Dialer sessions ---

type startSessionRequest struct {
	ListID     string `json:"list_id,omitempty"`
	DialerMode string `json:"dialer_mode,omitempty"`
}

func (h Handlers) StartSession(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	var req startSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	s, err := h.Sessions.Start(c.Request.Context(), wid, v.UserID, req.ListID, req.DialerMode)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// CurrentSession returns the caller's open session, if any.
func (h Handlers) CurrentSession(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	s, found, err := h.Sessions.OpenByAgent(c.Request.Context(), wid, v.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"open": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": true, "session": s})
}

func (h Handlers) TogglePause(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	s, err := h.Sessions.TogglePause(c.Request.Context(), wid, v.UserID, c.Param("session_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type recordCallRequest struct {
	Connected  bool  `json:"connected"`
	TalkTimeMs int64 `json:"talk_time_ms"`
}

func (h Handlers) RecordCall(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	var req recordCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Sessions.RecordCall(c.Request.Context(), wid, v.UserID, c.Param("session_id"), req.Connected, req.TalkTimeMs)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type endSessionRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h Handlers) EndSession(c *gin.Context) {
	wid, v, ok := identity(c)
	if !ok {
		return
	}
	var req endSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	s, err := h.Sessions.End(c.Request.Context(), wid, v.UserID, c.Param("session_id"), req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
