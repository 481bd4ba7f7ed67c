package costmodel

import "github.com/google/uuid"

// fakeTaskStore is a minimal in-memory TaskStore, mirroring the
// teacher's testfixtures style of small hand-built collaborators
// rather than a mocking framework.
type fakeTaskStore struct {
	tasks   map[TaskId]*TaskDescriptor
	running map[ResourceId][]*TaskDescriptor
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:   make(map[TaskId]*TaskDescriptor),
		running: make(map[ResourceId][]*TaskDescriptor),
	}
}

func (f *fakeTaskStore) GetTask(id TaskId) (*TaskDescriptor, bool) {
	t, ok := f.tasks[id]
	return t, ok
}

func (f *fakeTaskStore) RunningTasksOn(res ResourceId) []*TaskDescriptor {
	return f.running[res]
}

func (f *fakeTaskStore) addRunning(res ResourceId, tasks ...*TaskDescriptor) {
	f.running[res] = append(f.running[res], tasks...)
}

// fakeTopology is a minimal in-memory ResourceTopologyStore.
type fakeTopology struct {
	nodes    map[ResourceId]*ResourceDescriptor
	children map[ResourceId][]ResourceId
	root     ResourceId
	hasRoot  bool
}

func newFakeTopology() *fakeTopology {
	return &fakeTopology{
		nodes:    make(map[ResourceId]*ResourceDescriptor),
		children: make(map[ResourceId][]ResourceId),
	}
}

func (f *fakeTopology) Get(id ResourceId) (*ResourceDescriptor, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

func (f *fakeTopology) Children(id ResourceId) []ResourceId {
	return f.children[id]
}

func (f *fakeTopology) Root() (ResourceId, bool) {
	return f.root, f.hasRoot
}

func (f *fakeTopology) setRoot(id ResourceId) {
	f.root = id
	f.hasRoot = true
}

func (f *fakeTopology) addNode(desc *ResourceDescriptor, parent ResourceId, hasParent bool) {
	desc.ParentID = parent
	desc.HasParent = hasParent
	f.nodes[desc.ID] = desc
	if hasParent {
		f.children[parent] = append(f.children[parent], desc.ID)
	}
}

// singleMachineTopology builds a coordinator with one machine child,
// the shape most scenario tests need.
func singleMachineTopology(machine *ResourceDescriptor) *fakeTopology {
	topo := newFakeTopology()
	coordinator := &ResourceDescriptor{Type: ResourceCoordinator, ID: uuid.New()}
	topo.addNode(coordinator, ResourceId{}, false)
	topo.setRoot(coordinator.ID)
	topo.addNode(machine, coordinator.ID, true)
	machine.HasMachine = true
	machine.MachineID = machine.ID
	return topo
}

// fakeKnowledgeBase returns no telemetry samples by default; tests that
// need one program utilizations/pu maps directly.
type fakeKnowledgeBase struct {
	puUtilization map[ResourceId]map[int]float64
	puRunning     map[ResourceId]uint64
	memUtilization map[ResourceId]float64
}

func newFakeKnowledgeBase() *fakeKnowledgeBase {
	return &fakeKnowledgeBase{
		puUtilization:  make(map[ResourceId]map[int]float64),
		puRunning:      make(map[ResourceId]uint64),
		memUtilization: make(map[ResourceId]float64),
	}
}

func (kb *fakeKnowledgeBase) PUUtilization(machine ResourceId, coreId int) (float64, uint64, bool) {
	byCore, ok := kb.puUtilization[machine]
	if !ok {
		return 0, 0, false
	}
	u, ok := byCore[coreId]
	if !ok {
		return 0, 0, false
	}
	return u, kb.puRunning[machine], true
}

func (kb *fakeKnowledgeBase) MemoryUtilization(machine ResourceId) (float64, bool) {
	u, ok := kb.memUtilization[machine]
	return u, ok
}

// fakeLabelIndex is unused by the cost model's own logic today; it
// exists to satisfy LabelIndex for tests that construct a full
// CPUMemCostModel.
type fakeLabelIndex struct{}

func (fakeLabelIndex) TasksWithLabel(key, value string) []TaskId { return nil }

func newMachine(cpu, ram, maxPods uint64, labels map[string]string) *ResourceDescriptor {
	return &ResourceDescriptor{
		Type:      ResourceMachine,
		ID:        uuid.New(),
		Labels:    labels,
		Capacity:  ResourceRequest{CPUMillis: cpu, RAMBytes: ram},
		Available: ResourceRequest{CPUMillis: cpu, RAMBytes: ram},
		MaxPods:   maxPods,
	}
}

func newTask(id TaskId, cpu, ram uint64) *TaskDescriptor {
	return &TaskDescriptor{
		ID:              id,
		ResourceRequest: ResourceRequest{CPUMillis: cpu, RAMBytes: ram},
	}
}
