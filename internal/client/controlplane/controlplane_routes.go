package controlplane

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"

	"github.com/openmined/syftbox-client/internal/client/datasitemgr"
	"github.com/openmined/syftbox-client/internal/client/handlers"
	"github.com/openmined/syftbox-client/internal/client/middleware"
	"github.com/openmined/syftbox-client/internal/version"
)

type RouteConfig struct {
	Auth middleware.TokenAuthConfig
	// ClientURL is the externally visible base URL of this control plane,
	// handed to newly provisioned datasites.
	ClientURL string
}

func SetupRoutes(datasiteMgr *datasitemgr.DatasiteManager, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	rateLimitStore := memory.NewStore()
	rateLimiter := limiter.New(rateLimitStore, limiter.Rate{
		Period: 1 * time.Second,
		Limit:  10,
	})

	statusH := handlers.NewStatusHandler(datasiteMgr)
	initH := handlers.NewInitHandler(datasiteMgr, routeConfig.ClientURL)
	appH := handlers.NewAppHandler(datasiteMgr)
	syncH := handlers.NewSyncHandler(datasiteMgr)
	uploadH := handlers.NewUploadHandler(datasiteMgr)
	latencyH := handlers.NewLatencyHandler(datasiteMgr)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", IndexHandler)

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1.GET("/status", statusH.Status)

		v1Init := v1.Group("/init")
		{
			v1Init.GET("/token", initH.GetToken)
			v1Init.POST("/datasite", initH.InitDatasite)
		}

		v1App := v1.Group("/app")
		{
			v1App.GET("/list", appH.List)
			v1App.POST("/install", appH.Install)
			v1App.DELETE("/uninstall", appH.Uninstall)
		}

		v1Sync := v1.Group("/sync")
		{
			v1Sync.GET("/status", syncH.Status)
			v1Sync.GET("/status/file", syncH.StatusByPath)
			v1Sync.GET("/events", syncH.Events)
			v1Sync.POST("/now", syncH.TriggerSync)
		}

		v1Uploads := v1.Group("/uploads")
		{
			v1Uploads.GET("/", uploadH.List)
			v1Uploads.GET("/:id", uploadH.Get)
			v1Uploads.DELETE("/:id", uploadH.Cancel)
			v1Uploads.POST("/:id/pause", uploadH.Pause)
			v1Uploads.POST("/:id/resume", uploadH.Resume)
			v1Uploads.POST("/:id/restart", uploadH.Restart)
		}

		v1.GET("/stats/latency", latencyH.GetLatency)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Detailed())
}
