package ui

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trialsim/app"
	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

const defaultListLimit = 50

func (s *Server) handleBayesian(c *gin.Context) {
	var req app.BayesianRequest
	if !s.bind(c, "bayesian", &req) {
		return
	}
	result, err := s.services.Bayesian.Analyze(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, "bayesian", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleBayesianSynthetic(c *gin.Context) {
	var req app.BayesianSimulationRequest
	if !s.bind(c, "bayesian", &req) {
		return
	}
	result, err := s.services.Bayesian.Simulate(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, "bayesian", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAdaptive(c *gin.Context) {
	var req app.AdaptiveRequest
	if !s.bind(c, "adaptive", &req) {
		return
	}
	result, err := s.services.Adaptive.Run(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, "adaptive", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleReplicate(c *gin.Context) {
	var req app.ReplicateRequest
	if !s.bind(c, "adaptive-replicate", &req) {
		return
	}
	result, err := s.services.Adaptive.Replicate(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, "adaptive-replicate", err)
		return
	}
	if c.Query("runs") != "true" {
		result.Runs = nil
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleInterim(c *gin.Context) {
	var req app.InterimRequest
	if !s.bind(c, "interim", &req) {
		return
	}
	result, err := s.services.Interim.Run(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, "interim", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCreateDesign(c *gin.Context) {
	var d trial.Design
	if !s.bind(c, "design", &d) {
		return
	}
	created, err := s.services.Designs.Create(c.Request.Context(), d)
	if err != nil {
		s.respondError(c, "design", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetDesign(c *gin.Context) {
	id, err := core.ParseDesignID(c.Param("id"))
	if err != nil {
		s.respondError(c, "design", apperrors.InvalidInput(err.Error()))
		return
	}
	d, err := s.services.Designs.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, "design", err)
		return
	}
	if c.Query("download") == "true" {
		doc, err := s.services.Designs.Export(d)
		if err != nil {
			s.respondError(c, "design", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="trial-design.json"`)
		c.Data(http.StatusOK, gin.MIMEJSON, doc)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleListDesigns(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		s.respondError(c, "design", err)
		return
	}
	designs, err := s.services.Designs.List(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, "design", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"designs": designs})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.services.Runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []interface{}{}})
		return
	}
	kind := run.Kind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		s.respondError(c, "runs", apperrors.InvalidInput("unknown run kind "+string(kind)))
		return
	}
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		s.respondError(c, "runs", err)
		return
	}
	runs, err := s.services.Runs.ListRuns(c.Request.Context(), kind, limit)
	if err != nil {
		s.respondError(c, "runs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		s.respondError(c, "runs", apperrors.InvalidInput(err.Error()))
		return
	}
	if s.services.Runs == nil {
		s.respondError(c, "runs", apperrors.NotFound("simulation run "+id.String()))
		return
	}
	sr, err := s.services.Runs.GetRun(c.Request.Context(), id)
	if errors.Is(err, core.ErrRunNotFound) {
		s.respondError(c, "runs", apperrors.NotFound("simulation run "+id.String()))
		return
	}
	if err != nil {
		s.respondError(c, "runs", err)
		return
	}
	c.JSON(http.StatusOK, sr)
}
