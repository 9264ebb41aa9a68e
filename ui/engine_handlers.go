package ui

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"trialsim/adapters/stats/engine"
	"trialsim/app"
	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

type betaSummaryRequest struct {
	Alpha float64 `json:"alpha" binding:"required"`
	Beta  float64 `json:"beta" binding:"required"`
	Level float64 `json:"level"`
}

type betaSummaryResponse struct {
	Mean          float64        `json:"mean"`
	Variance      float64        `json:"variance"`
	Level         float64        `json:"level"`
	Interval      trial.Interval `json:"interval"`
	ExactInterval trial.Interval `json:"exact_interval"`
}

func (s *Server) handleBetaSummary(c *gin.Context) {
	const op = "beta-summary"
	var req betaSummaryRequest
	if !s.bind(c, op, &req) {
		return
	}
	if req.Level == 0 {
		req.Level = s.services.Defaults.CredibleLevel
	}

	var resp betaSummaryResponse
	var err error
	resp.Level = req.Level
	if resp.Mean, err = engine.Mean(req.Alpha, req.Beta); err != nil {
		s.respondError(c, op, err)
		return
	}
	if resp.Variance, err = engine.Variance(req.Alpha, req.Beta); err != nil {
		s.respondError(c, op, err)
		return
	}
	if resp.Interval, err = engine.CredibleInterval(req.Alpha, req.Beta, req.Level); err != nil {
		s.respondError(c, op, err)
		return
	}
	if resp.ExactInterval, err = engine.ExactCredibleInterval(req.Alpha, req.Beta, req.Level); err != nil {
		s.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type compareRequest struct {
	Control   trial.BetaParams `json:"control"`
	Treatment trial.BetaParams `json:"treatment"`
	Samples   int              `json:"samples"`
	Seed      *int64           `json:"seed"`
}

func (s *Server) handlePosteriorCompare(c *gin.Context) {
	const op = "posterior-compare"
	var req compareRequest
	if !s.bind(c, op, &req) {
		return
	}
	samples := req.Samples
	if samples == 0 {
		samples = s.services.Defaults.Samples
	}
	seed := s.seed(req.Seed)

	p, err := engine.ProbabilityTreatmentBetterParallel(c.Request.Context(), seed, req.Control, req.Treatment, samples, s.services.Defaults.Workers)
	if err != nil {
		s.respondError(c, op, err)
		return
	}
	s.services.Metrics.AddDraws(samples)
	c.JSON(http.StatusOK, gin.H{
		"probability_treatment_better": p,
		"monte_carlo_std_error":        engine.MonteCarloStdError(p, samples),
		"samples":                      samples,
		"seed":                         seed,
	})
}

type allocationRequest struct {
	Control   trial.BetaParams `json:"control"`
	Treatment trial.BetaParams `json:"treatment"`
	Tuning    *float64         `json:"tuning" binding:"required"`
	Samples   int              `json:"samples"`
	Seed      *int64           `json:"seed"`
}

func (s *Server) handleAllocation(c *gin.Context) {
	const op = "allocation"
	var req allocationRequest
	if !s.bind(c, op, &req) {
		return
	}
	samples := req.Samples
	if samples == 0 {
		samples = s.services.Defaults.Samples
	}
	seed := s.seed(req.Seed)
	src, err := s.services.RNG.SeededStream(c.Request.Context(), op, seed)
	if err != nil {
		s.respondError(c, op, err)
		return
	}

	p, err := engine.AdaptiveAllocationProbabilityN(src, req.Control, req.Treatment, *req.Tuning, samples)
	if err != nil {
		s.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocation_probability": p, "tuning": *req.Tuning, "seed": seed})
}

type outcomesRequest struct {
	N    int      `json:"n"`
	Rate *float64 `json:"rate" binding:"required"`
	Seed *int64   `json:"seed"`
}

func (s *Server) handleOutcomes(c *gin.Context) {
	const op = "outcomes"
	var req outcomesRequest
	if !s.bind(c, op, &req) {
		return
	}
	seed := s.seed(req.Seed)
	src, err := s.services.RNG.SeededStream(c.Request.Context(), op, seed)
	if err != nil {
		s.respondError(c, op, err)
		return
	}
	o, err := engine.GenerateBinaryOutcomes(src, req.N, *req.Rate)
	if err != nil {
		s.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"successes": o.Successes, "failures": o.Failures, "rate": o.Rate(), "seed": seed})
}

type conditionalPowerRequest struct {
	Z                   *float64     `json:"z" binding:"required"`
	InformationFraction float64      `json:"information_fraction"`
	CriticalValue       *float64     `json:"critical_value"`
	Alpha               float64      `json:"alpha"`
	Drift               *trial.Drift `json:"drift"`
}

func (s *Server) handleConditionalPower(c *gin.Context) {
	const op = "conditional-power"
	var req conditionalPowerRequest
	if !s.bind(c, op, &req) {
		return
	}
	var crit float64
	if req.CriticalValue != nil {
		crit = *req.CriticalValue
	} else {
		alpha := req.Alpha
		if alpha == 0 {
			alpha = s.services.Defaults.Alpha
		}
		var err error
		if crit, err = engine.InverseNormalCDF(1 - alpha/2); err != nil {
			s.respondError(c, op, err)
			return
		}
	}
	drift := trial.CurrentTrend()
	if req.Drift != nil {
		drift = *req.Drift
	}

	cp, err := engine.ConditionalPower(*req.Z, req.InformationFraction, crit, drift)
	if err != nil {
		s.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conditional_power": cp, "critical_value": crit, "drift": drift})
}

func (s *Server) handleBounds(c *gin.Context) {
	const op = "bounds"
	family := trial.BoundaryFamily(c.DefaultQuery("family", string(trial.BoundaryOBrienFleming)))
	analyses, err := queryInt(c, "analyses", 3)
	if err != nil {
		s.respondError(c, op, err)
		return
	}
	alpha := s.services.Defaults.Alpha
	if raw := c.Query("alpha"); raw != "" {
		if alpha, err = strconv.ParseFloat(raw, 64); err != nil {
			s.respondError(c, op, apperrors.InvalidInput("alpha must be a number"))
			return
		}
	}

	rows, err := app.BoundsTable(family, analyses, alpha)
	if err != nil {
		s.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"family": family, "alpha": alpha, "analyses": rows})
}

func (s *Server) seed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return s.services.Defaults.Seed
}
