package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultBasePath is the route prefix for ledger endpoints.
const DefaultBasePath = "/certledger"

type RouterConfig struct {
	Handler        *Handler
	Logger         *slog.Logger
	Metrics        *HTTPMetrics
	MetricsHandler http.Handler
	BasePath       string
}

// NewRouter builds a gin engine serving the ledger, health, and metrics routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID())
	if cfg.Logger != nil {
		router.Use(Logging(cfg.Logger))
	}
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}

	router.GET("/healthz", cfg.Handler.HealthCheck)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	base := cfg.BasePath
	if base == "" {
		base = DefaultBasePath
	}
	Register(router.Group(base), cfg.Handler)

	return router
}

// Register mounts the ledger routes on rg.
func Register(rg *gin.RouterGroup, h *Handler) {
	rg.GET("/owner", h.Owner)
	rg.GET("/entries", h.ListEntries)
	rg.GET("/entries/:index", h.GetEntry)
	rg.GET("/orders", h.ListOrders)
	rg.GET("/orders/:id", h.GetOrder)
	rg.GET("/events", h.Events)
	rg.POST("/tx", h.SubmitTx)
}
