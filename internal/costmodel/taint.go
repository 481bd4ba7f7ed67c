package costmodel

import (
	v1 "k8s.io/api/core/v1"
	corev1helpers "k8s.io/component-helpers/scheduling/corev1"
)

// findMatchingUntoleratedTaint returns the first taint on a machine
// that none of tolerations tolerates. ok is false if every taint is
// tolerated (or there are no taints).
//
// This is a supplemental hard constraint (SPEC_FULL.md §4.9): the
// distilled spec has no taint model, but the teacher's scheduler
// treats taint/toleration matching as part of the same hard-constraint
// sweep as node selectors and affinity, and nothing in spec.md's
// Non-goals excludes it.
func findMatchingUntoleratedTaint(taints []v1.Taint, tolerations []v1.Toleration) (v1.Taint, bool) {
	for _, t := range taints {
		if !corev1helpers.TolerationsTolerateTaint(tolerations, &t) {
			return t, true
		}
	}
	return v1.Taint{}, false
}
