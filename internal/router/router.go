package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuroscan/neuroscan-api/internal/handler/auth"
	"github.com/neuroscan/neuroscan-api/internal/handler/health"
	"github.com/neuroscan/neuroscan-api/internal/handler/patient"
	"github.com/neuroscan/neuroscan-api/internal/handler/predict"
	"github.com/neuroscan/neuroscan-api/internal/middleware"
	"github.com/neuroscan/neuroscan-api/internal/model"
)

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	CORSConfig     middleware.CORSConfig
	Timeout        time.Duration
	MetricsPrefix  string
}

func DefaultConfig() Config {
	return Config{
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		CORSConfig:     middleware.DefaultCORSConfig(),
		Timeout:        30 * time.Second,
		MetricsPrefix:  "neuroscan_http",
	}
}

type Router struct {
	engine   *gin.Engine
	authMW   *middleware.AuthMiddleware
	authH    *auth.Handler
	patientH *patient.Handler
	predictH *predict.Handler
	healthH  *health.Handler
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

func NewRouter(
	authMW *middleware.AuthMiddleware,
	authH *auth.Handler,
	patientH *patient.Handler,
	predictH *predict.Handler,
	healthH *health.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:   engine,
		authMW:   authMW,
		authH:    authH,
		patientH: patientH,
		predictH: predictH,
		healthH:  healthH,
		metrics:  initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
	)

	rateLimiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(&r.engine.RouterGroup)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api")
	api.Use(middleware.NoStore())

	// Public routes
	r.authH.RegisterRoutes(api)
	r.predictH.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.authMW.Authenticate())
	r.authH.RegisterProtectedRoutes(protected)
	r.patientH.RegisterRoutes(protected)

	// Doctor-only routes
	doctor := api.Group("")
	doctor.Use(r.authMW.Authenticate(), r.authMW.RequireRole(model.RoleDoctor))
	r.patientH.RegisterDoctorRoutes(doctor)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
