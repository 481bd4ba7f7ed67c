package costmodel

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// infinityTracker maintains the "infinity_" sentinel from spec.md §3
// invariant 5: infinity_ = max(accumulator + 1, previous infinity_).
type infinityTracker struct {
	value int64
}

// newInfinityTracker seeds infinity_ at omega·D + 1, D = 4 (the number
// of cost-vector dimensions), the upper bound spec.md §3 names.
func newInfinityTracker(omega int64) *infinityTracker {
	return &infinityTracker{value: omega*4 + 1}
}

// Observe folds a newly computed arc cost into the running sentinel.
func (t *infinityTracker) Observe(cost int64) {
	if cost+1 > t.value {
		t.value = cost + 1
	}
}

// Infinity returns the current upper-bound sentinel.
func (t *infinityTracker) Infinity() int64 {
	return t.value
}

// fraction returns n·used / capacity as a float in [0, 1], or 0 if
// capacity is 0 (an unconfigured dimension contributes nothing to the
// bin-packing cost).
func fraction(used, capacity uint64, n uint64) float64 {
	if capacity == 0 {
		return 0
	}
	f := float64(n*used) / float64(capacity)
	if f > 1 {
		f = 1
	}
	return f
}

// leastRequestedCost implements spec.md §4.5 step 4: the average of
// the per-dimension utilization fractions that would result from
// placing n copies of request on a machine with the given capacity,
// scaled to omega. Higher usage means higher cost.
func leastRequestedCost(request, capacity ResourceRequest, n uint64, omega int64) (cost int64, cpuFraction, ramFraction float64) {
	cpuFraction = fraction(request.CPUMillis, capacity.CPUMillis, n)
	ramFraction = fraction(request.RAMBytes, capacity.RAMBytes, n)
	sum := cpuFraction*float64(omega) + ramFraction*float64(omega)
	return int64(math.Floor(sum / 2)), cpuFraction, ramFraction
}

// balancedResourceCost implements spec.md §4.5 step 5: the population
// variance of the per-dimension utilization fractions, scaled to
// omega. It penalizes skewed allocations (e.g. all cpu, no ram).
//
// The mean is computed with gonum/stat.Mean; the variance itself is
// computed by hand rather than with stat.Variance, which divides by
// N-1 (Bessel's correction) and would not reproduce spec.md §8's
// worked example (0.015625 for two dimensions) — see DESIGN.md.
func balancedResourceCost(cpuFraction, ramFraction float64, omega int64) int64 {
	fractions := []float64{cpuFraction, ramFraction}
	mean := stat.Mean(fractions, nil)
	var variance float64
	for _, f := range fractions {
		d := f - mean
		variance += d * d
	}
	variance /= float64(len(fractions))
	return int64(math.Floor(variance * float64(omega)))
}

// LeastRequestedCost exposes leastRequestedCost to callers outside the
// package (the costmodel CLI's explain command), always evaluating the
// first slot (n=1), since a debug scenario has no fan-out concept.
func LeastRequestedCost(request, capacity ResourceRequest, omega int64) (cost int64, cpuFraction, ramFraction float64) {
	return leastRequestedCost(request, capacity, 1, omega)
}

// normalizeMax implements spec.md §4.5 step 6's node-affinity soft
// score normalization: normalized = raw / minmax.max · omega. If no
// positive raw score has been observed for this equivalence class this
// round, normalized is 0 (no preference has been expressed, so no
// machine earns a discount).
func normalizeMax(raw int64, mm MinMax, omega int64) int64 {
	if mm.Max <= 0 {
		return 0
	}
	return raw * omega / mm.Max
}

// normalizeMinMax implements spec.md §4.5 step 7's pod-affinity soft
// score normalization: normalized = (raw − min)/(max − min) · omega.
// If max == min (no differentiation between candidates this round),
// normalized is 0.
func normalizeMinMax(raw int64, mm MinMax, omega int64) int64 {
	span := mm.Max - mm.Min
	if span <= 0 {
		return 0
	}
	return (raw - mm.Min) * omega / span
}

// softPenalty turns a normalized preference score into a cost
// penalty: higher preference means lower cost.
func softPenalty(normalized, omega int64) int64 {
	return omega - normalized
}
