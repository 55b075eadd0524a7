package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/eco13rus/checkout-saga/internal/checkout"
	"github.com/eco13rus/checkout-saga/internal/middleware"
	"github.com/eco13rus/checkout-saga/pkg/metrics"
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// Router — конфигурация роутера оркестратора checkout-саги.
type Router struct {
	engine         *gin.Engine
	checkout       *checkout.Service
	authMW         *middleware.AuthMiddleware
	rateLimitMW    *middleware.RateLimitMiddleware
	tracingMW      *middleware.TracingMiddleware
	readinessCheck ReadinessChecker
}

// RouterConfig — параметры создания роутера.
type RouterConfig struct {
	Checkout       *checkout.Service
	AuthMW         *middleware.AuthMiddleware
	RateLimitMW    *middleware.RateLimitMiddleware
	TracingMW      *middleware.TracingMiddleware
	ReadinessCheck ReadinessChecker
	Debug          bool
}

// NewRouter создаёт и настраивает HTTP роутер для /api/v1/checkout/*.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	engine.Use(middleware.SecurityHeaders())
	engine.Use(otelgin.Middleware("checkout-saga"))
	engine.Use(metrics.GinMetricsMiddleware("checkout-saga"))

	r := &Router{
		engine:         engine,
		checkout:       cfg.Checkout,
		authMW:         cfg.AuthMW,
		rateLimitMW:    cfg.RateLimitMW,
		tracingMW:      cfg.TracingMW,
		readinessCheck: cfg.ReadinessCheck,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	if r.tracingMW != nil {
		r.engine.Use(r.tracingMW.Handle())
	}

	r.engine.GET("/healthz", r.livenessCheck)
	r.engine.GET("/readyz", r.readinessCheckHandler)

	v1 := r.engine.Group("/api/v1")

	checkoutHandler := NewCheckoutHandler(r.checkout)
	group := v1.Group("/checkout")
	if r.authMW != nil {
		group.Use(r.authMW.Handle())
	}
	// Rate limit идёт после auth, чтобы ключ лимита строился по userId принципала.
	if r.rateLimitMW != nil {
		group.Use(r.rateLimitMW.Handle())
	}
	{
		group.POST("/initiate", checkoutHandler.Initiate)
		group.POST("/complete", checkoutHandler.Complete)
		group.POST("/cancel", checkoutHandler.Cancel)
		group.POST("/address/validate", checkoutHandler.ValidateAddress)
		group.POST("/shipping/calculate", checkoutHandler.CalculateShipping)
	}
}

// Engine возвращает Gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.readinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
