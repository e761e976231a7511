package rebalance

// SplitExposureChange divides the exposure change into the part paid from
// equity and the part borrowed. Contributions are recorded as equity
// snapshots elsewhere, so every change is financed by borrowing.
func SplitExposureChange(currentExposure, targetExposure float64) (equityUsed, borrowIncrease float64) {
	return 0, targetExposure - currentExposure
}
