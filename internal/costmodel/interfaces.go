package costmodel

// The types in this file are the external collaborators named in
// spec.md §1 as out of scope: the knowledge base, the resource
// topology store, the task store, and the label index. The cost model only ever consumes these interfaces; it never
// implements them. Test fixtures provide small in-memory
// implementations (see fixtures_test.go).

// TaskStore is the read-only view of the task store the flow-graph
// manager owns.
type TaskStore interface {
	// GetTask returns the task descriptor for id, or ok=false if the
	// flow-graph manager has never registered it.
	GetTask(id TaskId) (*TaskDescriptor, bool)
	// RunningTasksOn returns every task currently scheduled to res,
	// used to evaluate pod affinity/anti-affinity terms.
	RunningTasksOn(res ResourceId) []*TaskDescriptor
}

// ResourceTopologyStore is the read-only view of the machine resource
// topology (coordinator, machines, NUMA nodes, sockets, cores, PUs).
type ResourceTopologyStore interface {
	// Get returns the resource descriptor for id.
	Get(id ResourceId) (*ResourceDescriptor, bool)
	// Children returns the direct children of id in the topology.
	Children(id ResourceId) []ResourceId
	// Root returns the id of the topology's coordinator node.
	Root() (ResourceId, bool)
}

// KnowledgeBase is a synchronous, in-memory source of machine
// telemetry samples. It never blocks on I/O (spec.md §5).
type KnowledgeBase interface {
	// PUUtilization returns the fraction (0..1) of the PU's CPU
	// capacity currently in use, and the machine's number of currently
	// running tasks. ok is false if no sample is available, in which
	// case GatherStats must leave the accumulator unchanged.
	PUUtilization(machine ResourceId, coreId int) (utilization float64, runningTasks uint64, ok bool)
	// MemoryUtilization returns the fraction (0..1) of the machine's
	// memory capacity currently in use. ok is false if no sample is
	// available.
	MemoryUtilization(machine ResourceId) (utilization float64, ok bool)
}

// LabelIndex is the read-only (key,value) -> tasks index maintained by
// the surrounding system.
type LabelIndex interface {
	TasksWithLabel(key, value string) []TaskId
}
