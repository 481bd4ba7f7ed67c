package costmodel

import (
	"github.com/pkg/errors"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// hardConstraintsMet implements spec.md §4.4: a machine is a candidate
// for a task iff node selector, required node affinity, required pod
// anti-affinity, and required pod affinity all hold, plus the
// supplemental taint/toleration check named in SPEC_FULL.md §4.9.
//
// It returns the name of the first failing predicate for diagnostics
// (SPEC_FULL.md §10 item 3); the name is never consulted by cost
// computation itself.
func hardConstraintsMet(machine *ResourceDescriptor, task *TaskDescriptor, runningOnMachine []*TaskDescriptor) (bool, string) {
	if !nodeSelectorMatches(task.NodeSelector, machine.Labels) {
		return false, "nodeSelector"
	}
	if !untoleratedTaintsMet(machine.Taints, task.Tolerations) {
		return false, "taint"
	}
	if !requiredNodeAffinityMet(task, machine.Labels) {
		return false, "requiredNodeAffinity"
	}
	if !requiredPodAntiAffinityMet(task, runningOnMachine) {
		return false, "requiredPodAntiAffinity"
	}
	if !requiredPodAffinityMet(task, runningOnMachine) {
		return false, "requiredPodAffinity"
	}
	return true, ""
}

// ConstraintResult is one named hard-constraint predicate's outcome,
// used by Explain for diagnostics (SPEC_FULL.md §10 item 3).
type ConstraintResult struct {
	Predicate string
	Satisfied bool
}

// Explain evaluates every hard-constraint predicate for (machine, task)
// without short-circuiting on the first failure, so a caller can see
// every reason a machine was rejected rather than just the first.
// hardConstraintsMet is still what GetEquivClassToEquivClassesArcs
// uses; Explain exists purely for operator-facing debugging.
func Explain(machine *ResourceDescriptor, task *TaskDescriptor, runningOnMachine []*TaskDescriptor) []ConstraintResult {
	return []ConstraintResult{
		{"nodeSelector", nodeSelectorMatches(task.NodeSelector, machine.Labels)},
		{"taint", untoleratedTaintsMet(machine.Taints, task.Tolerations)},
		{"requiredNodeAffinity", requiredNodeAffinityMet(task, machine.Labels)},
		{"requiredPodAntiAffinity", requiredPodAntiAffinityMet(task, runningOnMachine)},
		{"requiredPodAffinity", requiredPodAffinityMet(task, runningOnMachine)},
	}
}

func nodeSelectorMatches(selector map[string]string, labels map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func untoleratedTaintsMet(taints []v1.Taint, tolerations []v1.Toleration) bool {
	_, hasUntolerated := findMatchingUntoleratedTaint(taints, tolerations)
	return !hasUntolerated
}

func requiredNodeAffinityMet(task *TaskDescriptor, machineLabels map[string]string) bool {
	if task.Affinity == nil || task.Affinity.NodeAffinity == nil {
		return true
	}
	selector := task.Affinity.NodeAffinity.RequiredDuringSchedulingIgnoredDuringExecution
	if selector == nil || len(selector.NodeSelectorTerms) == 0 {
		return true
	}
	for _, term := range selector.NodeSelectorTerms {
		if nodeSelectorTermMatches(term, machineLabels) {
			return true
		}
	}
	return false
}

// nodeSelectorTermMatches implements the AND-of-expressions semantics
// of a single v1.NodeSelectorTerm. MatchFields is not applicable to
// this model (there is no field selector concept for machines here)
// and is ignored, matching the teacher's treatment of node-only
// scheduling.
func nodeSelectorTermMatches(term v1.NodeSelectorTerm, labels map[string]string) bool {
	for _, expr := range term.MatchExpressions {
		if !nodeSelectorRequirementMatches(expr, labels) {
			return false
		}
	}
	return true
}

func nodeSelectorRequirementMatches(req v1.NodeSelectorRequirement, labels map[string]string) bool {
	value, present := labels[req.Key]
	switch req.Operator {
	case v1.NodeSelectorOpIn:
		return present && containsString(req.Values, value)
	case v1.NodeSelectorOpNotIn:
		return !present || !containsString(req.Values, value)
	case v1.NodeSelectorOpExists:
		return present
	case v1.NodeSelectorOpDoesNotExist:
		return !present
	default:
		panic(errors.Errorf("costmodel: unknown node selector operator %q", req.Operator))
	}
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// requiredPodAntiAffinityMet implements spec.md §4.4's required pod
// anti-affinity predicate, resolving the Open Question in spec.md §9:
// absence of any candidate pod on the machine satisfies the term (it
// is trivially true), rather than the source's apparently buggy
// behavior of returning false in that case.
func requiredPodAntiAffinityMet(task *TaskDescriptor, running []*TaskDescriptor) bool {
	if task.Affinity == nil || task.Affinity.PodAntiAffinity == nil {
		return true
	}
	for _, term := range task.Affinity.PodAntiAffinity.RequiredDuringSchedulingIgnoredDuringExecution {
		namespaces := podAffinityTermNamespaces(term, task.Namespace)
		for _, other := range running {
			if !namespaces[other.Namespace] {
				continue
			}
			if labelSelectorMatches(term.LabelSelector, other.Labels) {
				// A pod this term describes is present: the term is
				// violated.
				return false
			}
		}
		// No running pod matched: the term is trivially satisfied.
	}
	return true
}

// requiredPodAffinityMet implements spec.md §4.4's required pod
// affinity predicate: at least one running pod must satisfy each term.
func requiredPodAffinityMet(task *TaskDescriptor, running []*TaskDescriptor) bool {
	if task.Affinity == nil || task.Affinity.PodAffinity == nil {
		return true
	}
	for _, term := range task.Affinity.PodAffinity.RequiredDuringSchedulingIgnoredDuringExecution {
		namespaces := podAffinityTermNamespaces(term, task.Namespace)
		satisfied := false
		for _, other := range running {
			if !namespaces[other.Namespace] {
				continue
			}
			if labelSelectorMatches(term.LabelSelector, other.Labels) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// podAffinityTermNamespaces returns the set of namespaces a
// PodAffinityTerm scopes over, defaulting to the task's own namespace
// per spec.md §4.4.
func podAffinityTermNamespaces(term v1.PodAffinityTerm, taskNamespace string) map[string]bool {
	if len(term.Namespaces) == 0 {
		return map[string]bool{taskNamespace: true}
	}
	set := make(map[string]bool, len(term.Namespaces))
	for _, ns := range term.Namespaces {
		set[ns] = true
	}
	return set
}

func labelSelectorMatches(selector *metav1.LabelSelector, labels map[string]string) bool {
	if selector == nil {
		return true
	}
	for k, v := range selector.MatchLabels {
		if labels[k] != v {
			return false
		}
	}
	for _, expr := range selector.MatchExpressions {
		if !labelSelectorRequirementMatches(expr, labels) {
			return false
		}
	}
	return true
}

func labelSelectorRequirementMatches(req metav1.LabelSelectorRequirement, labels map[string]string) bool {
	value, present := labels[req.Key]
	switch req.Operator {
	case metav1.LabelSelectorOpIn:
		return present && containsString(req.Values, value)
	case metav1.LabelSelectorOpNotIn:
		return !present || !containsString(req.Values, value)
	case metav1.LabelSelectorOpExists:
		return present
	case metav1.LabelSelectorOpDoesNotExist:
		return !present
	default:
		panic(errors.Errorf("costmodel: unknown label selector operator %q", req.Operator))
	}
}
