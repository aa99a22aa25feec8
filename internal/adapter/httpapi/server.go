// Package httpapi exposes the estimation service over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/pipeline"
)

// Estimator runs one estimation request.
type Estimator interface {
	ComputeForLocations(ctx context.Context, area *domain.AreaModel, times []time.Time, lats, lons []float64) (pipeline.Result, error)
}

// Pinger reports backing-store reachability for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	areas     []domain.AreaModel
	estimator Estimator
	store     Pinger
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewServer builds a Server over the configured areas.
func NewServer(areas []domain.AreaModel, estimator Estimator, store Pinger, clock clockwork.Clock, logger *slog.Logger) *Server {
	return &Server{
		areas:     areas,
		estimator: estimator,
		store:     store,
		clock:     clock,
		logger:    logger,
	}
}

// Router assembles the route table.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/readyz", s.handleReadyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/estimate", s.handleEstimate)
		v1.GET("/estimates", s.handleEstimates)
		v1.GET("/estimateMap", s.handleEstimateMap)
		v1.GET("/correctionFactors", s.handleCorrectionFactors)
		v1.GET("/boundingBox", s.handleBoundingBox)
	}

	return r
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
