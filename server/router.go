package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cache"
	"github.com/gin-contrib/cache/persistence"
	"github.com/gin-gonic/gin"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/gin-swagger/swaggerFiles"
	"xorm.io/xorm"

	"github.com/unibuild/controller/hub"
	"github.com/unibuild/controller/queue"
)

type Server struct {
	DB         *xorm.Engine
	Queue      *queue.Service
	Hub        *hub.Hub
	cacheStore *persistence.InMemoryStore
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func (s *Server) NewRouter() *gin.Engine {
	router := gin.Default()

	s.cacheStore = persistence.NewInMemoryStore(time.Second)

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/api/swagger/index.html")
	})

	router.GET("/ws", func(c *gin.Context) {
		s.Hub.HandleWebSocket(c.Writer, c.Request)
	})

	api := router.Group("/api")
	api.Use(CORS())

	openapiURL := ginSwagger.URL("/api/swagger/doc.json")
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, openapiURL))

	apiV1 := api.Group("/v1")
	apiV1.POST("/builds", s.apiV1CreateBuild)
	apiV1.GET("/builds", cache.CachePage(s.cacheStore, time.Second, s.apiV1GetBuilds))
	apiV1.GET("/builds/:id", s.apiV1GetBuild)
	apiV1.GET("/builds/:id/logs", s.apiV1GetBuildLogs)
	apiV1.POST("/builds/:id/cancel", s.apiV1CancelBuild)
	apiV1.POST("/builds/:id/uploadResult", s.apiV1ReportUploadResult)
	apiV1.GET("/pipelines/:id/processes", s.apiV1GetPipelineProcesses)

	return router
}
