// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/audit"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/metrics"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// FlagHistory lists past corrections for a player.
type FlagHistory interface {
	ListFlags(ctx context.Context, userID string) ([]audit.Entry, error)
}

// ActivationHistory reports per-week activation counts for a player.
type ActivationHistory interface {
	GetActivationData(ctx context.Context, userID string) (*service.ActivationTrackingData, error)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck interface {
	IsHealthy(ctx context.Context) bool
}

// HTTPDependencies are the read models served by the operational HTTP server.
// Flags and Activations are optional.
type HTTPDependencies struct {
	Records     record.Store
	Flags       FlagHistory
	Activations ActivationHistory
	Health      HealthCheck
}

// ErrorResponse is the body returned for failed admin requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPServer serves Prometheus metrics, health checks and read-only admin routes.
type HTTPServer struct {
	server   *http.Server
	port     int
	deps     HTTPDependencies
	registry *prometheus.Registry
}

// NewHTTPServer creates a new operational HTTP server instance.
func NewHTTPServer(port int, deps HTTPDependencies) *HTTPServer {
	return &HTTPServer{
		port: port,
		deps: deps,
	}
}

// Setup configures the Prometheus registry and the gin router.
func (s *HTTPServer) Setup() error {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.MustRegister(s.registry)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return nil
}

// Router builds the gin engine. Exposed for tests.
func (s *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", s.handleHealth)

	admin := r.Group("/admin/users/:userID")
	admin.GET("/progression", s.handleProgression)
	admin.GET("/flags", s.handleFlags)
	admin.GET("/activations", s.handleActivations)

	return r
}

func (s *HTTPServer) handleHealth(c *gin.Context) {
	if s.deps.Health != nil && !s.deps.Health.IsHealthy(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) handleProgression(c *gin.Context) {
	rec, err := s.deps.Records.Get(c.Request.Context(), c.Param("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *HTTPServer) handleFlags(c *gin.Context) {
	if s.deps.Flags == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "flag history is disabled"})
		return
	}

	entries, err := s.deps.Flags.ListFlags(c.Request.Context(), c.Param("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": c.Param("userID"), "flags": entries})
}

func (s *HTTPServer) handleActivations(c *gin.Context) {
	if s.deps.Activations == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "activation tracking is disabled"})
		return
	}

	data, err := s.deps.Activations.GetActivationData(c.Request.Context(), c.Param("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": c.Param("userID"), "activationCount": data.ActivationCount})
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, record.ErrEmptyUserID) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	logrus.Errorf("admin request %s failed: %v", c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// Start begins serving HTTP requests.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		logrus.Infof("HTTP server listening on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	logrus.Info("HTTP server stopped")
	return nil
}
