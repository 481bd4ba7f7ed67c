package costmodel

import (
	"strings"

	"github.com/pkg/errors"
)

// PrepareStats implements spec.md §4.6's pre-order callback: zero a
// resource node's round-local accumulators. This is also the
// authoritative round boundary named in spec.md §5: the priority
// scorer's caches are cleared here, at the first PrepareStats call of
// a round, rather than lazily inside GetEquivClassToEquivClassesArcs.
func (cm *CPUMemCostModel) PrepareStats(node *ResourceDescriptor) {
	if !cm.roundStarted {
		cm.priorities.Reset()
		cm.roundStarted = true
	}
	node.Available = ResourceRequest{}
	node.NumRunningTasksBelow = 0
	node.NumSlotsBelow = 0
}

// EndRound tells the cost model the current round's stat sweep and
// arc sweep are both complete; the next PrepareStats call starts a new
// round. The flow-graph manager calls this once per round, after
// consuming the arcs the oracle produced.
func (cm *CPUMemCostModel) EndRound() {
	cm.roundStarted = false
}

// GatherStats implements spec.md §4.6's post-order callback,
// dispatching on the parent's resource type.
func (cm *CPUMemCostModel) GatherStats(parent, child *ResourceDescriptor) error {
	switch parent.Type {
	case ResourcePU:
		return cm.gatherPUStats(parent)
	case ResourceMachine:
		return cm.gatherMachineStats(parent, child)
	case ResourceCoordinator:
		// identity, per spec.md §4.6.
		return nil
	default:
		if !parent.HasParent {
			// A topology walk should never reach a non-machine node
			// with no parent; per spec.md §7 this is a malformed
			// topology.
			return errMalformedTopology(parent)
		}
		parent.Available = parent.Available.Add(child.Available)
		parent.NumRunningTasksBelow += child.NumRunningTasksBelow
		parent.NumSlotsBelow += child.NumSlotsBelow
		return nil
	}
}

// gatherPUStats implements the PU case: parse the core id out of the
// friendly name "PU #<n>", pull the latest utilization sample for the
// enclosing machine, and set availability, running-task count, and
// slot count. A missing telemetry sample leaves Available unchanged
// (spec.md §7: "not an error").
func (cm *CPUMemCostModel) gatherPUStats(pu *ResourceDescriptor) error {
	coreId, err := coreIdFromFriendlyName(pu.FriendlyName)
	if err != nil {
		return err
	}
	if !pu.HasMachine {
		return errMalformedTopology(pu)
	}
	machine, ok := cm.machineDescriptor(pu.MachineID)
	if !ok {
		return errMalformedTopology(pu)
	}

	utilization, runningTasks, ok := cm.kb.PUUtilization(pu.MachineID, coreId)
	if ok {
		pu.Available.CPUMillis = uint64(float64(pu.Capacity.CPUMillis) * (1 - utilization))
		pu.NumRunningTasksBelow = runningTasks
	}
	pu.NumSlotsBelow = machine.MaxPods
	return nil
}

// gatherMachineStats implements the MACHINE case: sample machine
// memory utilization, then accumulate the child's contribution.
func (cm *CPUMemCostModel) gatherMachineStats(machine, child *ResourceDescriptor) error {
	utilization, ok := cm.kb.MemoryUtilization(machine.ID)
	if ok {
		machine.Available.RAMBytes = uint64(float64(machine.Capacity.RAMBytes) * (1 - utilization))
	}
	machine.Available.CPUMillis += child.Available.CPUMillis
	machine.NumRunningTasksBelow += child.NumRunningTasksBelow
	machine.NumSlotsBelow += child.NumSlotsBelow
	return nil
}

// UpdateStats implements spec.md §4.6's reserved propagation callback;
// it is currently identity.
func (cm *CPUMemCostModel) UpdateStats(parent, child *ResourceDescriptor) {
}

func coreIdFromFriendlyName(name string) (int, error) {
	const prefix = "PU #"
	if !strings.HasPrefix(name, prefix) {
		return 0, errors.Errorf("costmodel: malformed PU friendly name %q, expected \"PU #<n>\"", name)
	}
	n := 0
	for _, r := range name[len(prefix):] {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("costmodel: malformed PU friendly name %q, expected \"PU #<n>\"", name)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
