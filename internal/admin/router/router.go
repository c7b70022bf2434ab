package router

import (
	"net/http"

	"addongate/internal/admin/api"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置 Gin 路由，hub 为 nil 时不提供 /ws
func SetupRouter(h *api.Handler, hub *api.Hub, allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 配置 CORS
	config := cors.DefaultConfig()
	if len(allowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowOrigins
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	r.Use(cors.New(config))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if hub != nil {
		r.GET("/ws", hub.ServeWS)
	}

	// API v1 分组
	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/types", h.GetTypes)          // GET /api/v1/types
		apiV1.GET("/formats", h.GetFormats)      // GET /api/v1/formats
		apiV1.GET("/formats/:name", h.GetFormat) // GET /api/v1/formats/:name
		apiV1.GET("/instances", h.GetInstances)  // GET /api/v1/instances
		apiV1.GET("/stats", h.GetStats)          // GET /api/v1/stats
		apiV1.POST("/decode", h.DecodeHandler)   // POST /api/v1/decode
	}

	return r
}
