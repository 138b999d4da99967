package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/qc-cell/internal/api/handlers"
	"github.com/your-org/qc-cell/internal/api/ws"
	"github.com/your-org/qc-cell/internal/auth"
	"github.com/your-org/qc-cell/internal/queue"
	"github.com/your-org/qc-cell/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
	Cell     *handlers.CellHandler
}

// NewRouter builds qcwatch's HTTP surface: unauthenticated health/metrics
// endpoints, an authenticated v1 group with cell status and the live
// WebSocket feed.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	systemH := handlers.NewSystemHandler(cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	v1.GET("/ws", cfg.Hub.HandleWS)

	v1.GET("/dispatch/status", cfg.Cell.DispatchStatus)
	v1.GET("/calibration/status", cfg.Cell.CalibrationStatus)

	return r
}
