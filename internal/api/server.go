package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jobs/dedup/internal/dedup"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
}

func NewServer(scheduler *dedup.Scheduler, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	h := NewJobHandler(scheduler, logger)

	v1 := engine.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", h.Schedule)
			jobs.GET("", h.List)
			jobs.GET("/count", h.Count)
			jobs.GET("/:id", h.Get)
			jobs.POST("/:id/cancel", h.Cancel)
			jobs.DELETE("/:id", h.Delete)
		}
	}
	engine.GET("/api/v1/health", h.Health)

	return &Server{router: engine}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
