package costmodel

import (
	"github.com/pkg/errors"
)

// CostModel is the contract the flow-graph manager drives, per spec.md
// §6. CPUMemCostModel is its only implementation.
type CostModel interface {
	TaskToUnscheduledAgg(task TaskId) (ArcDescriptor, error)
	UnscheduledAggToSink(job JobId) (ArcDescriptor, error)
	TaskToResourceNode(task TaskId, resource ResourceId) (ArcDescriptor, error)
	ResourceNodeToResourceNode(parent, child ResourceId) (ArcDescriptor, error)
	LeafResourceNodeToSink(resource ResourceId) (ArcDescriptor, error)
	TaskContinuation(task TaskId) (ArcDescriptor, error)
	TaskPreemption(task TaskId) (ArcDescriptor, error)
	TaskToEquivClassAggregator(task TaskId, ec EquivClassId) (ArcDescriptor, error)
	EquivClassToResourceNode(ec EquivClassId, resource ResourceId) (ArcDescriptor, error)
	EquivClassToEquivClass(ec1, ec2 EquivClassId) (ArcDescriptor, error)

	GetTaskEquivClasses(task TaskId) ([]EquivClassId, error)
	GetOutgoingEquivClassPrefArcs(ec EquivClassId) ([]ResourceId, error)
	GetTaskPreferenceArcs(task TaskId) ([]ResourceId, error)
	GetEquivClassToEquivClassesArcs(ec1 EquivClassId) ([]EquivClassId, error)

	AddMachine(machine *ResourceDescriptor) error
	AddTask(task *TaskDescriptor) (EquivClassId, error)
	RemoveMachine(machine ResourceId) error
	RemoveTask(task TaskId) error

	PrepareStats(node *ResourceDescriptor)
	GatherStats(parent, child *ResourceDescriptor) error
	UpdateStats(parent, child *ResourceDescriptor)
}

// CPUMemCostModel implements CostModel by ranking machines on CPU/RAM
// bin-packing quality plus normalized affinity preference, per
// spec.md §4. It holds every table spec.md §3 names, split across the
// small helper types in this package, and consults the four external
// collaborators in interfaces.go for everything it does not own.
type CPUMemCostModel struct {
	cfg Config

	tasks    TaskStore
	topology ResourceTopologyStore
	kb       KnowledgeBase
	labels   LabelIndex
	metrics  *Metrics

	taskIdx    *taskIndex
	machineIdx *machineIndex
	priorities *priorityScorer
	infinity   *infinityTracker

	taskEC map[TaskId]EquivClassId

	roundStarted bool
}

// NewCPUMemCostModel constructs a cost model. metrics may be nil, in
// which case a no-op registry is used (tests mostly do this).
func NewCPUMemCostModel(cfg Config, tasks TaskStore, topology ResourceTopologyStore, kb KnowledgeBase, labels LabelIndex, metrics *Metrics) *CPUMemCostModel {
	if metrics == nil {
		metrics = noopMetrics()
	}
	return &CPUMemCostModel{
		cfg:        cfg,
		tasks:      tasks,
		topology:   topology,
		kb:         kb,
		labels:     labels,
		metrics:    metrics,
		taskIdx:    newTaskIndex(),
		machineIdx: newMachineIndex(cfg),
		priorities: newPriorityScorer(),
		infinity:   newInfinityTracker(cfg.Omega),
		taskEC:     make(map[TaskId]EquivClassId),
	}
}

var _ CostModel = (*CPUMemCostModel)(nil)

func errMalformedTopology(node *ResourceDescriptor) error {
	return errors.Errorf("costmodel: malformed resource topology at node %s (%s)", node.ID, node.FriendlyName)
}

func (cm *CPUMemCostModel) machineDescriptor(id ResourceId) (*ResourceDescriptor, bool) {
	return cm.topology.Get(id)
}

// allMachines walks the resource topology from its root, collecting
// every MACHINE node. It never descends past a machine into its NUMA
// nodes, sockets, cores, and PUs: candidate selection for placement
// operates at machine granularity, per spec.md §4.3.
func (cm *CPUMemCostModel) allMachines() []*ResourceDescriptor {
	root, ok := cm.topology.Root()
	if !ok {
		return nil
	}
	var machines []*ResourceDescriptor
	var walk func(id ResourceId)
	walk = func(id ResourceId) {
		desc, ok := cm.topology.Get(id)
		if !ok {
			return
		}
		if desc.Type == ResourceMachine {
			machines = append(machines, desc)
			return
		}
		for _, child := range cm.topology.Children(id) {
			walk(child)
		}
	}
	walk(root)
	return machines
}

// AddMachine registers machine's fan-out slots, per spec.md §4.3/§4.7.
func (cm *CPUMemCostModel) AddMachine(machine *ResourceDescriptor) error {
	if err := cm.machineIdx.AddMachine(machine); err != nil {
		return err
	}
	if cm.cfg.MaxMultiArcsForCPU > 0 && machine.MaxPods > cm.cfg.MaxMultiArcsForCPU {
		cm.metrics.FanOutClamped.Inc()
	}
	return nil
}

// RemoveMachine erases machine's fan-out slots, per spec.md §4.7.
func (cm *CPUMemCostModel) RemoveMachine(machine ResourceId) error {
	return cm.machineIdx.RemoveMachine(machine)
}

// AddTask computes task's equivalence class, registers it if this is
// the class's first sighting, and records the task's own resource
// request, per spec.md §4.2 and §3 invariant 3.
func (cm *CPUMemCostModel) AddTask(task *TaskDescriptor) (EquivClassId, error) {
	ec := equivClassForTask(task)
	cm.taskIdx.getOrCreateEquivClass(ec, task.ResourceRequest, task)
	cm.taskIdx.AddTask(task.ID, task.ResourceRequest)
	cm.taskEC[task.ID] = ec
	return ec, nil
}

// RemoveTask erases task's own request. Its equivalence class outlives
// it, per spec.md §3 invariant 3.
func (cm *CPUMemCostModel) RemoveTask(task TaskId) error {
	cm.taskIdx.RemoveTask(task)
	delete(cm.taskEC, task)
	return nil
}

// GetTaskEquivClasses returns the single equivalence class task was
// last registered under (spec.md §4.2: a task belongs to exactly one
// EC at a time).
func (cm *CPUMemCostModel) GetTaskEquivClasses(task TaskId) ([]EquivClassId, error) {
	ec, ok := cm.taskEC[task]
	if !ok {
		return nil, errors.Errorf("costmodel: task %s was never registered with AddTask", task)
	}
	return []EquivClassId{ec}, nil
}

// TaskToUnscheduledAgg is the fixed-cost escape hatch every task keeps
// open: spec.md §4.5's unscheduled_cost, capacity 1.
func (cm *CPUMemCostModel) TaskToUnscheduledAgg(task TaskId) (ArcDescriptor, error) {
	return ArcDescriptor{Cost: unscheduledCost, Capacity: 1}, nil
}

// UnscheduledAggToSink is a zero-cost pass-through; the unscheduled
// aggregator never itself constrains flow.
func (cm *CPUMemCostModel) UnscheduledAggToSink(job JobId) (ArcDescriptor, error) {
	return ArcDescriptor{Cost: 0, Capacity: 1}, nil
}

// TaskToResourceNode is unused by this model: every placement path
// routes through a task's equivalence class, never directly to a
// resource node (spec.md §4.3). It reports a zero-capacity arc so a
// caller that invokes it anyway gets no flow rather than a spurious
// discount.
func (cm *CPUMemCostModel) TaskToResourceNode(task TaskId, resource ResourceId) (ArcDescriptor, error) {
	return ArcDescriptor{Cost: 0, Capacity: 0}, nil
}

// TaskToEquivClassAggregator is the zero-cost arc admitting a task
// into its equivalence class's aggregator, per spec.md §4.3.
func (cm *CPUMemCostModel) TaskToEquivClassAggregator(task TaskId, ec EquivClassId) (ArcDescriptor, error) {
	return ArcDescriptor{Cost: 0, Capacity: 1}, nil
}

// EquivClassToResourceNode is unused by this model for the same reason
// as TaskToResourceNode: EC-to-EC arcs carry the machine-slot mapping
// instead (spec.md §4.3).
func (cm *CPUMemCostModel) EquivClassToResourceNode(ec EquivClassId, resource ResourceId) (ArcDescriptor, error) {
	return ArcDescriptor{Cost: 0, Capacity: 0}, nil
}

// ResourceNodeToResourceNode is the zero-cost pass-through arc
// connecting a topology node to a child, capacity-bounded by the
// child's slot fan-out, per spec.md §4.6's num_slots_below field.
func (cm *CPUMemCostModel) ResourceNodeToResourceNode(parent, child ResourceId) (ArcDescriptor, error) {
	desc, ok := cm.topology.Get(child)
	if !ok {
		return ArcDescriptor{}, errors.Errorf("costmodel: unknown resource node %s", child)
	}
	capacity := desc.NumSlotsBelow
	if desc.Type == ResourceMachine && capacity == 0 {
		capacity = desc.MaxPods
	}
	return ArcDescriptor{Cost: 0, Capacity: capacity}, nil
}

// LeafResourceNodeToSink bounds a PU's direct flow to the sink by the
// enclosing machine's max_pods, falling back to the configured per-PU
// task cap (max_tasks_per_pu) when the machine or its max_pods is
// unknown.
func (cm *CPUMemCostModel) LeafResourceNodeToSink(resource ResourceId) (ArcDescriptor, error) {
	capacity := cm.cfg.MaxTasksPerPU
	if leaf, ok := cm.topology.Get(resource); ok && leaf.HasMachine {
		if machine, ok := cm.machineDescriptor(leaf.MachineID); ok && machine.MaxPods > 0 {
			capacity = machine.MaxPods
		}
	}
	return ArcDescriptor{Cost: 0, Capacity: capacity}, nil
}

// TaskContinuation and TaskPreemption implement the stub shape
// SPEC_FULL.md §10 item 2 supplements from the original scheduler:
// unit-capacity, zero-cost arcs that a live scheduler would cost
// against running-task disruption, left as a hook for a future
// preemption policy.
func (cm *CPUMemCostModel) TaskContinuation(task TaskId) (ArcDescriptor, error) {
	return ArcDescriptor{Cost: 0, Capacity: 1}, nil
}

func (cm *CPUMemCostModel) TaskPreemption(task TaskId) (ArcDescriptor, error) {
	return ArcDescriptor{Cost: 0, Capacity: 1}, nil
}

// GetTaskPreferenceArcs is empty in this model: tasks never express a
// direct resource-node preference outside the affinity terms already
// folded into EquivClassToEquivClass's soft cost (spec.md §4.5 steps
// 6-7).
func (cm *CPUMemCostModel) GetTaskPreferenceArcs(task TaskId) ([]ResourceId, error) {
	return nil, nil
}

// GetOutgoingEquivClassPrefArcs returns the distinct machines a
// task-side equivalence class can currently reach, derived from
// GetEquivClassToEquivClassesArcs's candidate slots.
func (cm *CPUMemCostModel) GetOutgoingEquivClassPrefArcs(ec1 EquivClassId) ([]ResourceId, error) {
	ec2s, err := cm.GetEquivClassToEquivClassesArcs(ec1)
	if err != nil {
		return nil, err
	}
	seen := make(map[ResourceId]bool, len(ec2s))
	var out []ResourceId
	for _, ec2 := range ec2s {
		machineID, _, found := cm.machineIdx.MachineAndIndexForEC(ec2)
		if found && !seen[machineID] {
			seen[machineID] = true
			out = append(out, machineID)
		}
	}
	return out, nil
}

// GetEquivClassToEquivClassesArcs implements spec.md §4.5: for a
// task-side equivalence class, find every machine that passes the hard
// constraint filter, then every feasible slot on it (capacity check
// against the machine's current availability), and emit one candidate
// arc per feasible slot.
//
// This is the two-pass normalization point: pass one records every candidate's raw
// node-affinity and pod-affinity scores (populating this equivalence
// class's per-round MinMax), pass two asks EquivClassToEquivClass for
// each arc's flattened cost, which only then normalizes against the
// now-complete MinMax.
func (cm *CPUMemCostModel) GetEquivClassToEquivClassesArcs(ec1 EquivClassId) ([]EquivClassId, error) {
	req := cm.taskIdx.RequestForEquivClass(ec1)
	task := cm.taskIdx.TaskTemplateForEquivClass(ec1)

	type candidate struct {
		machine *ResourceDescriptor
		running []*TaskDescriptor
	}
	var candidates []candidate
	for _, machine := range cm.allMachines() {
		running := cm.tasks.RunningTasksOn(machine.ID)
		ok, predicate := hardConstraintsMet(machine, task, running)
		if !ok {
			cm.metrics.HardConstraintRejects.WithLabelValues(predicate).Inc()
			continue
		}
		cm.priorities.RecordNodeAffinity(ec1, machine, task)
		cm.priorities.RecordPodAffinity(ec1, machine, task, running)
		candidates = append(candidates, candidate{machine: machine, running: running})
	}

	var out []EquivClassId
	for _, c := range candidates {
		for _, slot := range cm.machineIdx.Slots(c.machine.ID) {
			n := slot.Index + 1
			if !req.Mul(n).LessOrEqual(c.machine.Available) {
				// Slots are visited in increasing index order and demand
				// is monotonically increasing in n: once one slot is
				// infeasible, every later slot on this machine is too.
				break
			}
			out = append(out, slot.EC)
		}
	}
	cm.metrics.ArcsEmitted.Add(float64(len(out)))
	return out, nil
}

// EquivClassToEquivClass computes the arc descriptor spec.md §4.5
// describes for a specific (task EC, machine-slot EC) pair: the
// flattened cost vector, unit capacity, no minimum flow.
func (cm *CPUMemCostModel) EquivClassToEquivClass(ec1, ec2 EquivClassId) (ArcDescriptor, error) {
	machineID, index, found := cm.machineIdx.MachineAndIndexForEC(ec2)
	if !found {
		return ArcDescriptor{}, errors.Errorf("costmodel: %d is not a machine-slot equivalence class", ec2)
	}
	machine, ok := cm.topology.Get(machineID)
	if !ok {
		return ArcDescriptor{}, errors.Errorf("costmodel: unknown machine %s", machineID)
	}
	req := cm.taskIdx.RequestForEquivClass(ec1)
	n := index + 1

	cpuMemCost, cpuFraction, ramFraction := leastRequestedCost(req, machine.Capacity, n, cm.cfg.Omega)
	balanced := balancedResourceCost(cpuFraction, ramFraction, cm.cfg.Omega)
	nodeAffinity := cm.priorities.NodeAffinityPenalty(ec1, machineID, cm.cfg.Omega)
	podAffinity := cm.priorities.PodAffinityPenalty(ec1, machineID, cm.cfg.Omega)

	vector := CostVector{
		CPUMem:           cpuMemCost,
		BalancedRes:      balanced,
		NodeAffinitySoft: nodeAffinity,
		PodAffinitySoft:  podAffinity,
	}
	cost := vector.Flatten()
	cm.infinity.Observe(cost)
	cm.metrics.ArcCost.Observe(float64(cost))
	return ArcDescriptor{Cost: cost, Capacity: 1}, nil
}
