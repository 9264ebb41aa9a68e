package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trialsim/app"
	"trialsim/internal"
	apperrors "trialsim/internal/errors"
	"trialsim/internal/metrics"
	"trialsim/ports"
)

// Services are the collaborators behind the JSON API.
type Services struct {
	Bayesian *app.BayesianService
	Adaptive *app.AdaptiveService
	Interim  *app.InterimService
	Designs  *app.DesignService
	Runs     ports.RunRepository
	RNG      ports.RNGPort
	Defaults app.Defaults
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewServices wires the services over deps and a design store.
func NewServices(deps app.Deps, designs ports.DesignRepository, gatherer prometheus.Gatherer) Services {
	return Services{
		Bayesian: app.NewBayesianService(deps),
		Adaptive: app.NewAdaptiveService(deps),
		Interim:  app.NewInterimService(deps),
		Designs:  app.NewDesignService(designs),
		Runs:     deps.Runs,
		RNG:      deps.RNG,
		Defaults: deps.Defaults,
		Metrics:  deps.Metrics,
		Gatherer: gatherer,
	}
}

// Server is the JSON API for the statistical engine and the simulations.
type Server struct {
	router   *gin.Engine
	services Services
	logger   *internal.Logger
}

// NewServer creates a new API server instance
func NewServer(services Services) *Server {
	s := &Server{
		router:   gin.Default(),
		services: services,
		logger:   internal.NewComponentLogger("Server"),
	}
	if s.services.Gatherer == nil {
		s.services.Gatherer = prometheus.DefaultGatherer
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.services.Gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	api.Use(requireJSON())
	{
		api.POST("/beta/summary", s.handleBetaSummary)
		api.POST("/posterior/compare", s.handlePosteriorCompare)
		api.POST("/allocation", s.handleAllocation)
		api.POST("/outcomes", s.handleOutcomes)
		api.POST("/conditional-power", s.handleConditionalPower)
		api.GET("/bounds", s.handleBounds)

		api.POST("/simulations/bayesian", s.handleBayesian)
		api.POST("/simulations/bayesian/synthetic", s.handleBayesianSynthetic)
		api.POST("/simulations/adaptive", s.handleAdaptive)
		api.POST("/simulations/adaptive/replicate", s.handleReplicate)
		api.POST("/simulations/interim", s.handleInterim)

		api.POST("/designs", s.handleCreateDesign)
		api.GET("/designs", s.handleListDesigns)
		api.GET("/designs/:id", s.handleGetDesign)

		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"persistence": s.services.Runs != nil,
		"samples":     s.services.Defaults.Samples,
		"workers":     s.services.Defaults.Workers,
	})
}

// respondError maps err onto its HTTP status and a {"error","code"} body.
func (s *Server) respondError(c *gin.Context, operation string, err error) {
	status := apperrors.HTTPStatus(err)
	if errors.Is(err, context.Canceled) {
		status = 499
	}
	if apperrors.IsInvalidParameter(err) {
		s.services.Metrics.InvalidParameter(operation)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s failed: %v", operation, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": apperrors.GetCode(err)})
}

// bind decodes the JSON body and reports binding failures as INVALID_INPUT.
func (s *Server) bind(c *gin.Context, operation string, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, operation, apperrors.InvalidInput("invalid request body: "+err.Error()))
		return false
	}
	return true
}
