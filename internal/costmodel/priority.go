package costmodel

import (
	v1 "k8s.io/api/core/v1"
)

// nodeAndPodScore bundles the two independent soft-score raw/cached
// values recorded for a (task-EC, machine) pair within a round —
// spec.md §3's ec_node_scores row.
type nodeAndPodScore struct {
	NodeAffinity PriorityScore
	PodAffinity  PriorityScore
}

// priorityScorer owns spec.md §3's ec_node_scores and ec_minmax
// tables: round-local caches of raw soft-constraint scores and their
// per-round min/max, used to normalize costs in EquivClassToEquivClass.
type priorityScorer struct {
	nodeScores map[EquivClassId]map[ResourceId]*nodeAndPodScore
	minMax     map[EquivClassId]ecMinMax
}

func newPriorityScorer() *priorityScorer {
	return &priorityScorer{
		nodeScores: make(map[EquivClassId]map[ResourceId]*nodeAndPodScore),
		minMax:     make(map[EquivClassId]ecMinMax),
	}
}

// Reset clears both caches, per spec.md §3 invariant 4: they are
// scheduling-round-local and must be cleared at the start of each
// round.
func (p *priorityScorer) Reset() {
	p.nodeScores = make(map[EquivClassId]map[ResourceId]*nodeAndPodScore)
	p.minMax = make(map[EquivClassId]ecMinMax)
}

func (p *priorityScorer) getMinMax(ec EquivClassId) ecMinMax {
	mm, ok := p.minMax[ec]
	if !ok {
		mm = ecMinMax{NodeAffinity: NewMinMax(), PodAffinity: NewMinMax()}
	}
	return mm
}

func (p *priorityScorer) entry(ec EquivClassId, machine ResourceId) *nodeAndPodScore {
	byMachine, ok := p.nodeScores[ec]
	if !ok {
		byMachine = make(map[ResourceId]*nodeAndPodScore)
		p.nodeScores[ec] = byMachine
	}
	e, ok := byMachine[machine]
	if !ok {
		e = &nodeAndPodScore{
			NodeAffinity: NewPriorityScore(true, 0),
			PodAffinity:  NewPriorityScore(true, 0),
		}
		byMachine[machine] = e
	}
	return e
}

// RecordNodeAffinity computes and records the raw node-affinity
// preference score for (ec1, machine), per spec.md §4.5 step 6, and
// folds it into ec1's per-round MinMax.
func (p *priorityScorer) RecordNodeAffinity(ec1 EquivClassId, machine *ResourceDescriptor, task *TaskDescriptor) {
	raw := nodeAffinityPreferenceScore(task, machine.Labels)
	entry := p.entry(ec1, machine.ID)
	entry.NodeAffinity = NewPriorityScore(true, raw)

	mm := p.getMinMax(ec1)
	mm.NodeAffinity.Observe(raw)
	p.minMax[ec1] = mm
}

// RecordPodAffinity computes and records the raw pod-affinity/
// anti-affinity preference score for (ec1, machine), per spec.md §4.5
// step 7.
func (p *priorityScorer) RecordPodAffinity(ec1 EquivClassId, machine *ResourceDescriptor, task *TaskDescriptor, runningOnMachine []*TaskDescriptor) {
	raw := podAffinityPreferenceScore(task, runningOnMachine)
	entry := p.entry(ec1, machine.ID)
	entry.PodAffinity = NewPriorityScore(true, raw)

	mm := p.getMinMax(ec1)
	mm.PodAffinity.Observe(raw)
	p.minMax[ec1] = mm
}

// NodeAffinityPenalty returns the normalized node-affinity cost
// penalty for (ec1, machine), caching the normalized value into Final
// on first computation (spec.md §4.5 step 6, §9 "two-pass
// normalization").
func (p *priorityScorer) NodeAffinityPenalty(ec1 EquivClassId, machine ResourceId, omega int64) int64 {
	entry := p.entry(ec1, machine)
	if entry.NodeAffinity.Final == unsetScore {
		mm := p.getMinMax(ec1)
		entry.NodeAffinity.Final = normalizeMax(entry.NodeAffinity.Raw, mm.NodeAffinity, omega)
	}
	return softPenalty(entry.NodeAffinity.Final, omega)
}

// PodAffinityPenalty returns the normalized pod-affinity cost penalty
// for (ec1, machine), per spec.md §4.5 step 7.
func (p *priorityScorer) PodAffinityPenalty(ec1 EquivClassId, machine ResourceId, omega int64) int64 {
	entry := p.entry(ec1, machine)
	if entry.PodAffinity.Final == unsetScore {
		mm := p.getMinMax(ec1)
		entry.PodAffinity.Final = normalizeMinMax(entry.PodAffinity.Raw, mm.PodAffinity, omega)
	}
	return softPenalty(entry.PodAffinity.Final, omega)
}

// nodeAffinityPreferenceScore sums the weights of preferred node
// affinity terms the machine's labels satisfy (spec.md §4.5 step 6).
func nodeAffinityPreferenceScore(task *TaskDescriptor, machineLabels map[string]string) int64 {
	if task.Affinity == nil || task.Affinity.NodeAffinity == nil {
		return 0
	}
	var raw int64
	for _, term := range task.Affinity.NodeAffinity.PreferredDuringSchedulingIgnoredDuringExecution {
		if nodeSelectorTermMatches(term.Preference, machineLabels) {
			raw += int64(term.Weight)
		}
	}
	return raw
}

// podAffinityPreferenceScore sums the weights of preferred pod
// affinity terms satisfied by a running pod on the machine, plus the
// weights of preferred pod anti-affinity terms that are satisfied
// (i.e. the machine has no pod matching the described label set),
// per spec.md §4.5 step 7.
func podAffinityPreferenceScore(task *TaskDescriptor, runningOnMachine []*TaskDescriptor) int64 {
	if task.Affinity == nil {
		return 0
	}
	var raw int64
	if task.Affinity.PodAffinity != nil {
		for _, wt := range task.Affinity.PodAffinity.PreferredDuringSchedulingIgnoredDuringExecution {
			namespaces := podAffinityTermNamespaces(wt.PodAffinityTerm, task.Namespace)
			if anyMatches(wt.PodAffinityTerm, namespaces, runningOnMachine) {
				raw += int64(wt.Weight)
			}
		}
	}
	if task.Affinity.PodAntiAffinity != nil {
		for _, wt := range task.Affinity.PodAntiAffinity.PreferredDuringSchedulingIgnoredDuringExecution {
			namespaces := podAffinityTermNamespaces(wt.PodAffinityTerm, task.Namespace)
			if !anyMatches(wt.PodAffinityTerm, namespaces, runningOnMachine) {
				raw += int64(wt.Weight)
			}
		}
	}
	return raw
}

func anyMatches(term v1.PodAffinityTerm, namespaces map[string]bool, running []*TaskDescriptor) bool {
	for _, other := range running {
		if !namespaces[other.Namespace] {
			continue
		}
		if labelSelectorMatches(term.LabelSelector, other.Labels) {
			return true
		}
	}
	return false
}
