package app

import (
	"fmt"
	"strings"

	"trialsim/domain/trial"
)

// RenderBayesianMarkdown formats a posterior comparison as a markdown report.
func RenderBayesianMarkdown(r *BayesianResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Bayesian comparison\n\n")
	fmt.Fprintf(&b, "Run `%s`, seed %d, prior %s Beta(%g, %g).\n\n", r.RunID, r.Seed, r.Prior.Label, r.Prior.Params.Alpha, r.Prior.Params.Beta)

	level := int(r.CredibleLevel*100 + 0.5)
	fmt.Fprintf(&b, "| Arm | Responses | Posterior | Mean | %d%% interval (approx.) | %d%% interval (exact) |\n", level, level)
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, arm := range []struct {
		name string
		a    ArmPosterior
	}{{"Control", r.Control}, {"Treatment", r.Treatment}} {
		fmt.Fprintf(&b, "| %s | %d/%d | Beta(%g, %g) | %.3f | [%.3f, %.3f] | [%.3f, %.3f] |\n",
			arm.name, arm.a.Observed.Successes, arm.a.Observed.N(),
			arm.a.Posterior.Alpha, arm.a.Posterior.Beta, arm.a.Mean,
			arm.a.Interval.Lower, arm.a.Interval.Upper,
			arm.a.ExactInterval.Lower, arm.a.ExactInterval.Upper)
	}

	fmt.Fprintf(&b, "\n**P(treatment better)** = %.4f (Monte Carlo SE %.4f over %d draws)\n\n", r.ProbabilityTreatmentBetter, r.MonteCarloStdError, r.Samples)
	fmt.Fprintf(&b, "**Absolute difference** in posterior means = %+.3f\n", r.AbsoluteDifference)
	return b.String()
}

// RenderAdaptiveMarkdown formats one adaptive trial.
func RenderAdaptiveMarkdown(r *AdaptiveResult) string {
	var b strings.Builder
	p := r.Params
	fmt.Fprintf(&b, "# Response-adaptive randomization\n\n")
	fmt.Fprintf(&b, "Run `%s`, seed %d. True rates control %.2f, treatment %.2f; N = %d; tuning %.2f.\n\n",
		r.RunID, r.Seed, p.ControlRate, p.TreatmentRate, p.TotalN, p.Tuning)

	s := r.Summary
	b.WriteString("| Arm | Allocated | Responses | Observed rate |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| Control | %d | %d | %.3f |\n", s.ControlN, s.ControlResponses, s.ControlRate)
	fmt.Fprintf(&b, "| Treatment | %d | %d | %.3f |\n", s.TreatmentN, s.TreatmentResponses, s.TreatmentRate)
	fmt.Fprintf(&b, "\nTreatment share %.1f%%, final allocation probability %.3f.\n\n", 100*s.TreatmentShare, s.FinalAllocationProb)

	b.WriteString("## Trajectory\n\n")
	b.WriteString("| Patient | P(allocate to treatment) | Control n | Treatment n | Control responses | Treatment responses |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, pt := range r.Trajectory {
		fmt.Fprintf(&b, "| %d | %.3f | %d | %d | %d | %d |\n",
			pt.Patient, pt.AllocationProb, pt.ControlN, pt.TreatmentN, pt.ControlResponses, pt.TreatmentResponses)
	}
	return b.String()
}

// RenderReplicateMarkdown formats a replicate study.
func RenderReplicateMarkdown(r *ReplicateResult) string {
	var b strings.Builder
	p := r.Params
	fmt.Fprintf(&b, "# Adaptive randomization: %d replicates\n\n", r.Replicates)
	fmt.Fprintf(&b, "Run `%s`, seed %d. True rates control %.2f, treatment %.2f; N = %d; tuning %.2f.\n\n",
		r.RunID, r.Seed, p.ControlRate, p.TreatmentRate, p.TotalN, p.Tuning)

	b.WriteString("| Quantity | Mean | SD | 5th pct | Median | 95th pct |\n|---|---|---|---|---|---|\n")
	for _, row := range []struct {
		name string
		d    Distribution
	}{
		{"Treatment share", r.TreatmentShare},
		{"Final allocation probability", r.FinalAllocation},
		{"Observed rate difference", r.ObservedDifference},
		{"Total responses", r.TotalResponses},
	} {
		fmt.Fprintf(&b, "| %s | %.3f | %.3f | %.3f | %.3f | %.3f |\n", row.name, row.d.Mean, row.d.StdDev, row.d.P05, row.d.Median, row.d.P95)
	}
	return b.String()
}

// RenderInterimMarkdown formats the monitoring table of an interim run.
func RenderInterimMarkdown(r *InterimResult) string {
	var b strings.Builder
	p := r.Params
	fmt.Fprintf(&b, "# Interim monitoring\n\n")
	fmt.Fprintf(&b, "Run `%s`, seed %d. %s boundary, %d looks, target N = %d, alpha = %g, true rates %.2f vs %.2f.\n\n",
		r.RunID, r.Seed, boundaryLabel(p.Boundary), p.Analyses, p.TargetN, p.Alpha, p.ControlRate, p.TreatmentRate)

	b.WriteString("| Look | Info | Enrolled | Control events | Treatment events | Z | Efficacy bound | Futility bound | CP | Alpha spent | Recommendation |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|\n")
	for _, l := range r.Looks {
		fmt.Fprintf(&b, "| %d | %.2f | %d | %d | %d | %.3f | %.3f | %.1f | %.1f%% | %.5f | %s |\n",
			l.Analysis, l.InformationFraction, l.Enrolled, l.ControlEvents, l.TreatmentEvents,
			l.ZStatistic, l.EfficacyBound, l.FutilityBound, 100*l.ConditionalPower, l.AlphaSpent,
			RecommendationLabel(l.Recommendation))
	}

	fmt.Fprintf(&b, "\n**Recommendation:** %s", RecommendationLabel(r.Recommendation))
	if r.StoppedEarly {
		fmt.Fprintf(&b, " (stopped at look %d of %d)", r.StoppedAt, p.Analyses)
	}
	b.WriteString("\n")
	return b.String()
}

// RecommendationLabel is the human-readable action.
func RecommendationLabel(r trial.Recommendation) string {
	switch r {
	case trial.RecommendStopEfficacy:
		return "Stop for Efficacy"
	case trial.RecommendStopFutility:
		return "Stop for Futility"
	case trial.RecommendConsiderFutility:
		return "Consider Futility"
	case trial.RecommendContinue:
		return "Continue Trial"
	default:
		return string(r)
	}
}

func boundaryLabel(f trial.BoundaryFamily) string {
	if f == trial.BoundaryPocock {
		return "Pocock"
	}
	return "O'Brien-Fleming"
}
