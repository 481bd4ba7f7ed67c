package costmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskIndex_AddRemoveRequest(t *testing.T) {
	idx := newTaskIndex()
	idx.AddTask("t1", ResourceRequest{CPUMillis: 100, RAMBytes: 200})
	assert.Equal(t, ResourceRequest{CPUMillis: 100, RAMBytes: 200}, idx.RequestForTask("t1"))

	idx.RemoveTask("t1")
	assert.Panics(t, func() { idx.RequestForTask("t1") })
}

func TestTaskIndex_RequestForTask_PanicsWhenMissing(t *testing.T) {
	idx := newTaskIndex()
	assert.Panics(t, func() { idx.RequestForTask("missing") })
}

func TestTaskIndex_GetOrCreateEquivClass_StableAcrossReinsertion(t *testing.T) {
	idx := newTaskIndex()
	req := ResourceRequest{CPUMillis: 100, RAMBytes: 200}
	task := newTask("t1", 100, 200)
	idx.getOrCreateEquivClass(1, req, task)
	assert.NotPanics(t, func() { idx.getOrCreateEquivClass(1, req, task) })
	assert.Equal(t, req, idx.RequestForEquivClass(1))
}

func TestTaskIndex_GetOrCreateEquivClass_PanicsOnConflictingRequest(t *testing.T) {
	idx := newTaskIndex()
	task := newTask("t1", 100, 200)
	idx.getOrCreateEquivClass(1, ResourceRequest{CPUMillis: 100, RAMBytes: 200}, task)
	assert.Panics(t, func() {
		idx.getOrCreateEquivClass(1, ResourceRequest{CPUMillis: 999, RAMBytes: 200}, task)
	})
}
