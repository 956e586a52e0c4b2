package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"postquery/api/response"
	"postquery/config"
	"postquery/infrastructure/messaging"
	"postquery/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Pinger checks the read model database. nil means the in-memory store.
type Pinger func(ctx context.Context) error

// ConsumerStatus is the event consumer as seen by health checks.
type ConsumerStatus interface {
	State() messaging.State
	Stats() messaging.Stats
}

// Controller Health check controller
type Controller struct {
	config    *config.Config
	ping      Pinger
	consumer  ConsumerStatus
	startTime time.Time
}

// NewController Create health check controller. ping and consumer may be nil.
func NewController(cfg *config.Config, ping Pinger, consumer ConsumerStatus) *Controller {
	return &Controller{
		config:    cfg,
		ping:      ping,
		consumer:  consumer,
		startTime: time.Now(),
	}
}

// RegisterRoutes Register health check routes
func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", c.Health)
	router.GET("/health/live", c.Liveness)
	router.GET("/health/ready", c.Readiness)
}

// HealthResponse Health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check Check item
type Check struct {
	Status  string           `json:"status"`
	Message string           `json:"message,omitempty"`
	Latency string           `json:"latency,omitempty"`
	Stats   *messaging.Stats `json:"stats,omitempty"`
}

// SystemInfo System information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
}

// Health Complete health check
func (c *Controller) Health(ctx *gin.Context) {
	checks := make(map[string]Check)
	overallStatus := "healthy"

	if c.ping != nil {
		dbCheck := c.checkDatabase(ctx.Request.Context())
		checks["database"] = dbCheck
		if dbCheck.Status != "healthy" {
			overallStatus = "unhealthy"
		}
	}

	if c.consumer != nil {
		consumerCheck := c.checkConsumer()
		checks["consumer"] = consumerCheck
		if consumerCheck.Status != "healthy" && overallStatus == "healthy" {
			overallStatus = "degraded"
		}
	}

	body := HealthResponse{
		Status:    overallStatus,
		Version:   c.config.App.Version,
		Uptime:    time.Since(c.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	// Only expose system info in development mode
	if c.config.IsDevelopment() {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		body.System = &SystemInfo{
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     memStats.Alloc,
		}
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	ctx.JSON(statusCode, body)
}

// Liveness Liveness check (Kubernetes liveness check)
func (c *Controller) Liveness(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// Readiness Readiness check (Kubernetes readiness check).
// A lagging consumer does not make the read API unready.
func (c *Controller) Readiness(ctx *gin.Context) {
	if c.ping != nil {
		if err := c.ping(ctx.Request.Context()); err != nil {
			response.HandleAppError(ctx, errors.Wrap(err, errors.CodeServiceUnavailable, "database not available"))
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// checkDatabase Check database connection
func (c *Controller) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := c.ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{
			Status:  "unhealthy",
			Message: "database not available",
			Latency: latency.String(),
		}
	}

	return Check{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkConsumer reports a stopped consumer as unhealthy. Retrying and
// skipping are normal, transient states.
func (c *Controller) checkConsumer() Check {
	state := c.consumer.State()
	stats := c.consumer.Stats()

	status := "healthy"
	if state == messaging.StateStopped {
		status = "unhealthy"
	}
	return Check{
		Status:  status,
		Message: state.String(),
		Stats:   &stats,
	}
}
