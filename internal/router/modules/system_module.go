package modules

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/kios-auth/internal/interface/middleware"
	"github.com/oksasatya/kios-auth/internal/metrics"
)

// SystemModule serves /healthz and, when enabled, Prometheus metrics on /metrics.
type SystemModule struct {
	MetricsEnabled bool
	RDB            *redis.Client
}

func NewSystemModule(metricsEnabled bool, rdb *redis.Client) *SystemModule {
	return &SystemModule{MetricsEnabled: metricsEnabled, RDB: rdb}
}

func (m *SystemModule) Register(rg *gin.RouterGroup) {
	rg.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if !m.MetricsEnabled {
		return
	}
	metrics.MustRegister()
	// scrapers on private networks are not limited
	rl := middleware.RateLimit(m.RDB, 120, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	rg.GET("/metrics", rl, gin.WrapH(promhttp.Handler()))
}
