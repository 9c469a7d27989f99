package main

import (
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	anyRole := rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager)
	managerOnly := rbac.RequireAnyRole(rbac.RoleManager)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)

		// CALL LIST routes. Configuration mutations and bulk population are
		// manager surface; reads stay open to agents so their queue UI works.
		listsGroup := v1.Group("/lists")
		listsGroup.Use(rbac.RequireWorkspace())
		{
			listsGroup.GET("", anyRole, h.GetLists)
			listsGroup.GET("/:list_id", anyRole, h.GetList)
			listsGroup.GET("/:list_id/items", anyRole, h.GetItems)
			listsGroup.POST("/:list_id/items", anyRole, h.AddItem)

			listsGroup.POST("", managerOnly, h.CreateList)
			listsGroup.PATCH("/:list_id", managerOnly, h.UpdateList)
			listsGroup.DELETE("/:list_id", managerOnly, h.DeleteList)
			listsGroup.POST("/:list_id/refresh", managerOnly, h.RefreshList)
			listsGroup.POST("/populate", managerOnly, h.PopulateLists)
		}

		// QUEUE routes
		queueGroup := v1.Group("/queue")
		queueGroup.Use(rbac.RequireWorkspace())
		{
			queueGroup.GET("/next", anyRole, h.NextItem)
			queueGroup.POST("/items/:item_id/release", anyRole, h.ReleaseItem)
			queueGroup.GET("/items/:item_id/attempts", anyRole, h.GetAttempts)
			queueGroup.POST("/dial", anyRole, h.Dial)

			queueGroup.POST("/bulk-assign", managerOnly, h.BulkAssign)
		}

		// SESSION routes
		sessionsGroup := v1.Group("/sessions")
		sessionsGroup.Use(rbac.RequireWorkspace(), anyRole)
		{
			sessionsGroup.POST("", h.StartSession)
			sessionsGroup.GET("/current", h.CurrentSession)
			sessionsGroup.POST("/:session_id/pause", h.TogglePause)
			sessionsGroup.POST("/:session_id/calls", h.RecordCall)
			sessionsGroup.POST("/:session_id/end", h.EndSession)
		}

		// DISPOSITION routes
		dispGroup := v1.Group("/dispositions")
		dispGroup.Use(rbac.RequireWorkspace(), anyRole)
		{
			dispGroup.GET("", h.GetDispositions)
			dispGroup.POST("/apply", h.ApplyDisposition)
		}

		// DASHBOARD routes
		v1.GET("/dashboard/stats", rbac.RequireWorkspace(), anyRole, h.GetDashboardStats)
	}
}
