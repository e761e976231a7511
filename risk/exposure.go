package risk

import "github.com/rustyeddy/levered/config"

// ExposureBranch names the targeting rule that produced a target exposure.
type ExposureBranch string

const (
	BranchBelowMin    ExposureBranch = "below_min"
	BranchAboveMax    ExposureBranch = "above_max"
	BranchBelowTarget ExposureBranch = "below_target"
	BranchInRange     ExposureBranch = "in_range"
)

// TargetExposure converts current leverage and the leverage bounds into a
// target total exposure. The rules are evaluated in order:
//
//   - below min: re-lever to the target, not just to the floor
//   - above max: de-lever to the max
//   - below target: re-lever to the target
//   - otherwise: keep the current exposure
func TargetExposure(equity, exposure float64, b config.LeverageBounds) (float64, ExposureBranch) {
	lev := 0.0
	if equity > 0 {
		lev = exposure / equity
	}

	switch {
	case lev < b.Min:
		return equity * b.Target, BranchBelowMin
	case lev > b.Max:
		return equity * b.Max, BranchAboveMax
	case lev < b.Target:
		return equity * b.Target, BranchBelowTarget
	default:
		return exposure, BranchInRange
	}
}
