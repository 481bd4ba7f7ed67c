// Package costmodel implements the CPU/memory cost model and
// equivalence-class arc generator for a min-cost-max-flow cluster
// scheduler: it assigns costs and capacities to the arcs of the flow
// graph the scheduler solves, and maintains the indices needed to
// compute them.
package costmodel

import (
	"github.com/google/uuid"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// TaskId identifies a task (pod) known to the surrounding flow-graph
// manager.
type TaskId string

// JobId identifies the job a task belongs to.
type JobId string

// ResourceId identifies a node in the resource topology (coordinator,
// machine, NUMA node, socket, core, or PU).
type ResourceId = uuid.UUID

// EquivClassId is a 64-bit hash identifying an equivalence class.
// Collisions are treated as negligible, per spec.
type EquivClassId uint64

// ResourceType enumerates the node kinds in the resource topology.
type ResourceType int

const (
	ResourceCoordinator ResourceType = iota
	ResourceMachine
	ResourceNuma
	ResourceSocket
	ResourceCore
	ResourcePU
)

func (t ResourceType) String() string {
	switch t {
	case ResourceCoordinator:
		return "COORDINATOR"
	case ResourceMachine:
		return "MACHINE"
	case ResourceNuma:
		return "NUMA"
	case ResourceSocket:
		return "SOCKET"
	case ResourceCore:
		return "CORE"
	case ResourcePU:
		return "PU"
	default:
		return "UNKNOWN"
	}
}

// ResourceRequest is the (cpu, ram) demand or capacity of a task or
// resource node. Cpu is in milli-cores, Ram in bytes, matching the
// units the surrounding system uses consistently throughout.
type ResourceRequest struct {
	CPUMillis uint64
	RAMBytes  uint64
}

// Mul returns the request scaled by k copies.
func (r ResourceRequest) Mul(k uint64) ResourceRequest {
	return ResourceRequest{CPUMillis: r.CPUMillis * k, RAMBytes: r.RAMBytes * k}
}

// Add returns the element-wise sum of r and o.
func (r ResourceRequest) Add(o ResourceRequest) ResourceRequest {
	return ResourceRequest{CPUMillis: r.CPUMillis + o.CPUMillis, RAMBytes: r.RAMBytes + o.RAMBytes}
}

// Sub returns the element-wise difference r - o, saturating at zero on
// underflow (a resource node never reports negative availability).
func (r ResourceRequest) Sub(o ResourceRequest) ResourceRequest {
	rv := ResourceRequest{}
	if r.CPUMillis > o.CPUMillis {
		rv.CPUMillis = r.CPUMillis - o.CPUMillis
	}
	if r.RAMBytes > o.RAMBytes {
		rv.RAMBytes = r.RAMBytes - o.RAMBytes
	}
	return rv
}

// LessOrEqual reports whether r fits within o on every dimension.
func (r ResourceRequest) LessOrEqual(o ResourceRequest) bool {
	return r.CPUMillis <= o.CPUMillis && r.RAMBytes <= o.RAMBytes
}

// ResourceDescriptor is a node in the machine resource topology.
// The round-local accumulators at the end of the struct are mutated in
// place by the stat aggregator (§4.6); every other field is set once at
// registration.
type ResourceDescriptor struct {
	Type         ResourceType
	ID           ResourceId
	FriendlyName string
	Labels       map[string]string
	Taints       []v1.Taint

	Capacity ResourceRequest
	MaxPods  uint64

	ParentID    ResourceId
	HasParent   bool
	MachineID   ResourceId // the enclosing machine; equal to ID when Type == ResourceMachine
	HasMachine  bool

	// Round-local accumulators, reset by PrepareStats and populated by
	// GatherStats.
	Available            ResourceRequest
	NumRunningTasksBelow uint64
	NumSlotsBelow        uint64
}

// TaskDescriptor carries everything the cost model needs to know about
// a task in order to compute placement arcs.
type TaskDescriptor struct {
	ID        TaskId
	JobID     JobId
	Namespace string

	ResourceRequest ResourceRequest

	// Labels are this task's own pod labels, matched against by other
	// tasks' pod-affinity/anti-affinity terms.
	Labels map[string]string

	NodeSelector   map[string]string
	Affinity       *v1.Affinity
	Tolerations    []v1.Toleration
	LabelSelectors *metav1.LabelSelector

	State              TaskState
	ScheduledToResource ResourceId
	IsScheduled         bool
}

// HasAffinity reports whether the task has any affinity block set,
// per spec.md §4.2 step 1.
func (t *TaskDescriptor) HasAffinity() bool {
	if t.Affinity == nil {
		return false
	}
	return t.Affinity.NodeAffinity != nil || t.Affinity.PodAffinity != nil || t.Affinity.PodAntiAffinity != nil
}

// HasLabelSelectors reports whether the task carries label selectors,
// per spec.md §4.2 step 2.
func (t *TaskDescriptor) HasLabelSelectors() bool {
	return t.LabelSelectors != nil && len(t.LabelSelectors.MatchLabels)+len(t.LabelSelectors.MatchExpressions) > 0
}

// TaskState enumerates the lifecycle states a TaskDescriptor may be in.
type TaskState int

const (
	TaskRunnable TaskState = iota
	TaskRunning
	TaskUnscheduled
)

// CostVector is the multi-dimensional per-arc cost bundle, flattened
// to a single scalar by Flatten. All dimensions are non-negative and
// bounded by Omega.
type CostVector struct {
	CPUMem           int64
	BalancedRes      int64
	NodeAffinitySoft int64
	PodAffinitySoft  int64
}

// Flatten sums the cost vector's dimensions into the scalar arc cost.
func (v CostVector) Flatten() int64 {
	return v.CPUMem + v.BalancedRes + v.NodeAffinitySoft + v.PodAffinitySoft
}

// ArcDescriptor is the contract returned for every graph-node-role
// pair the cost model is asked about.
type ArcDescriptor struct {
	Cost     int64
	Capacity uint64
	MinFlow  uint64
}

// PriorityScore is a single term's contribution to a soft-constraint
// score, before and after per-round normalization.
type PriorityScore struct {
	Satisfies bool
	Raw       int64
	// Final caches the normalized score; -1 means "not yet computed".
	Final int64
}

const unsetScore int64 = -1

// NewPriorityScore returns a PriorityScore with Final unset.
func NewPriorityScore(satisfies bool, raw int64) PriorityScore {
	return PriorityScore{Satisfies: satisfies, Raw: raw, Final: unsetScore}
}

// MinMax tracks the per-round minimum and maximum raw priority score
// observed for an equivalence class, used to normalize soft costs.
// NewMinMax returns one with Min == Max == -1, meaning "no
// observations yet"; the struct's zero value (0, 0) is not empty.
type MinMax struct {
	Min int64
	Max int64
}

// NewMinMax returns an empty MinMax.
func NewMinMax() MinMax {
	return MinMax{Min: unsetScore, Max: unsetScore}
}

// Observe folds raw into the running min/max.
func (mm *MinMax) Observe(raw int64) {
	if mm.Min == unsetScore || raw < mm.Min {
		mm.Min = raw
	}
	if mm.Max == unsetScore || raw > mm.Max {
		mm.Max = raw
	}
}

// ecMinMax bundles the two independent soft-score MinMax trackers
// maintained per task-side equivalence class.
type ecMinMax struct {
	NodeAffinity MinMax
	PodAffinity  MinMax
}
