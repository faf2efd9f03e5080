package api

import (
	"net/http"

	"MatchSync/internal/config"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter admin routes behind the shared secret; health, metrics and pprof stay open
func NewRouter(cfg *config.Config, runner SyncRunner, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Server.Pprof {
		pprof.Register(r)
	}

	syncHandler := NewSyncHandler(runner, logger)
	auth := SharedSecretAuth(cfg.Admin.SharedSecret, logger)

	r.POST("/cron/sync", auth, syncHandler.CronSync)
	admin := r.Group("/admin", auth)
	{
		admin.POST("/sync", syncHandler.AdminSync)
		admin.POST("/sync/replay/:match_id", syncHandler.ReplaySync)
		admin.GET("/sync/status", syncHandler.Status)
	}
	return r
}
