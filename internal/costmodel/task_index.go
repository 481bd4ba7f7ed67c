package costmodel

import (
	"github.com/pkg/errors"
)

// taskIndex holds the per-task and per-task-equivalence-class state
// the cost model owns: spec.md §3's task_request, ec_request, and
// ec_task_template tables. It is small and id-keyed, so it is kept as
// plain maps rather than a go-memdb table (see DESIGN.md's
// standard-library-justification note; the machine fan-out index,
// which needs ordered per-machine iteration, uses go-memdb instead).
type taskIndex struct {
	taskRequest    map[TaskId]ResourceRequest
	ecRequest      map[EquivClassId]ResourceRequest
	ecTaskTemplate map[EquivClassId]TaskDescriptor
}

func newTaskIndex() *taskIndex {
	return &taskIndex{
		taskRequest:    make(map[TaskId]ResourceRequest),
		ecRequest:      make(map[EquivClassId]ResourceRequest),
		ecTaskTemplate: make(map[EquivClassId]TaskDescriptor),
	}
}

// AddTask inserts req into task_request. Re-adding an existing task
// updates its request; the flow-graph manager is responsible for not
// doing so mid-round.
func (idx *taskIndex) AddTask(id TaskId, req ResourceRequest) {
	idx.taskRequest[id] = req
}

// RemoveTask erases id from task_request.
func (idx *taskIndex) RemoveTask(id TaskId) {
	delete(idx.taskRequest, id)
}

// RequestForTask returns the resource request registered for id. It
// panics if id was never added: a missing entry indicates a
// flow-graph-manager bug, per spec.md §7.
func (idx *taskIndex) RequestForTask(id TaskId) ResourceRequest {
	req, ok := idx.taskRequest[id]
	if !ok {
		panic(errors.Errorf("costmodel: task %s has no registered resource request", id))
	}
	return req
}

// getOrCreateEquivClass records ec's request and task template on
// first sight, and asserts an existing entry is unchanged, per
// spec.md §3 invariant 3 ("ec_request[ec] is stable for the life of
// the EC; re-inserts with a different value are forbidden").
func (idx *taskIndex) getOrCreateEquivClass(ec EquivClassId, req ResourceRequest, task *TaskDescriptor) {
	if existing, ok := idx.ecRequest[ec]; ok {
		if existing != req {
			panic(errors.Errorf("costmodel: equivalence class %d re-inserted with different resource request (%+v != %+v)", ec, existing, req))
		}
		return
	}
	idx.ecRequest[ec] = req
	idx.ecTaskTemplate[ec] = *task
}

// RequestForEquivClass returns the resource request associated with
// ec. It panics if ec is unknown.
func (idx *taskIndex) RequestForEquivClass(ec EquivClassId) ResourceRequest {
	req, ok := idx.ecRequest[ec]
	if !ok {
		panic(errors.Errorf("costmodel: equivalence class %d has no registered resource request", ec))
	}
	return req
}

// TaskTemplateForEquivClass returns the task descriptor snapshot ec
// was created from. It panics if ec is unknown.
func (idx *taskIndex) TaskTemplateForEquivClass(ec EquivClassId) *TaskDescriptor {
	tmpl, ok := idx.ecTaskTemplate[ec]
	if !ok {
		panic(errors.Errorf("costmodel: equivalence class %d has no registered task template", ec))
	}
	return &tmpl
}

// equivClassForTask computes the single equivalence class a task maps
// to, per spec.md §4.2. It does not mutate the index; callers insert
// via getOrCreateEquivClass.
func equivClassForTask(task *TaskDescriptor) EquivClassId {
	var seed uint64
	switch {
	case task.HasAffinity():
		seed = hashJobId(task.JobID)
	case task.HasLabelSelectors():
		seed = hashLabelSelectorsAndCPUMem(task.LabelSelectors, task.ResourceRequest)
	default:
		seed = hashCPUMem(task.ResourceRequest)
	}
	return EquivClassId(seed)
}
