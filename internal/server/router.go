// Package server assembles the daemon's HTTP routes: the REST API, the
// WebSocket subscription endpoint and the metrics handler.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gauciv/triji-app-admin-dashboard/internal/api"
)

// NewRouter builds the gin engine for the daemon.
func NewRouter(h *api.Handler) *gin.Engine {
	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api/auth/sign-in", h.SignIn)

	apiGroup := r.Group("/api", h.RequireAuth)
	{
		apiGroup.POST("/query", h.Query)
		apiGroup.POST("/docs/:collection", h.Create)
		apiGroup.PUT("/docs/:collection/:id", h.Update)
		apiGroup.DELETE("/docs/:collection/:id", h.Delete)
		apiGroup.GET("/subscribe", func(c *gin.Context) {
			ServeSubscriptions(h, c)
		})
	}

	return r
}
