package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/service"
	"fleximart-etl/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Runner starts pipeline runs and serves their last reports
type Runner interface {
	RunNormalized(ctx context.Context) (*service.RunResult, error)
	RunWarehouse(ctx context.Context) (*service.RunResult, error)
	LastReport(ctx context.Context, pipeline string) (*models.RunReport, error)
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	runner Runner
	checks map[string]ReadinessCheck
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(runner Runner, checks map[string]ReadinessCheck) *Handler {
	return &Handler{
		runner: runner,
		checks: checks,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/runs/normalized", h.runNormalized)
		v1.POST("/runs/warehouse", h.runWarehouse)
		v1.GET("/runs/:pipeline/last", h.lastReport)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) runNormalized(c *gin.Context) {
	h.respondRun(c, models.PipelineNormalized, h.runner.RunNormalized)
}

func (h *Handler) runWarehouse(c *gin.Context) {
	h.respondRun(c, models.PipelineWarehouse, h.runner.RunWarehouse)
}

func (h *Handler) respondRun(c *gin.Context, pipeline string, run func(context.Context) (*service.RunResult, error)) {
	res, err := run(c.Request.Context())
	if errors.Is(err, service.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Run already in progress",
		})
		return
	}
	if err != nil {
		h.logger.Error("Run request failed", zap.String("pipeline", pipeline), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Run failed",
			"details": err.Error(),
		})
		return
	}

	metrics := make([]models.MetricValue, 0, len(res.Metrics.Keys()))
	for _, k := range res.Metrics.Keys() {
		metrics = append(metrics, models.MetricValue{Key: k, Value: res.Metrics.Get(k)})
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":   res.RunID,
		"pipeline": res.Pipeline,
		"metrics":  metrics,
	})
}

// lastReport serves the cached report of the last successful run
func (h *Handler) lastReport(c *gin.Context) {
	pipeline := c.Param("pipeline")
	if pipeline != models.PipelineNormalized && pipeline != models.PipelineWarehouse {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown pipeline",
		})
		return
	}

	rep, err := h.runner.LastReport(c.Request.Context(), pipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to read report",
			"details": err.Error(),
		})
		return
	}
	if rep == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No report for pipeline",
		})
		return
	}

	c.JSON(http.StatusOK, rep)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
