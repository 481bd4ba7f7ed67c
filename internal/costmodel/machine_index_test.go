package costmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineIndex_AddMachineRegistersOneSlotPerMaxPods(t *testing.T) {
	mi := newMachineIndex(DefaultConfig())
	machine := newMachine(1000, 1000, 3, nil)
	require.NoError(t, mi.AddMachine(machine))

	slots := mi.Slots(machine.ID)
	require.Len(t, slots, 3)
	for i, s := range slots {
		assert.Equal(t, uint64(i), s.Index)
	}
}

func TestMachineIndex_FanOutClampedToConfiguredCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMultiArcsForCPU = 2
	mi := newMachineIndex(cfg)
	machine := newMachine(1000, 1000, 10, nil)
	require.NoError(t, mi.AddMachine(machine))
	assert.Len(t, mi.Slots(machine.ID), 2)
}

func TestMachineIndex_RemoveMachineErasesSlots(t *testing.T) {
	mi := newMachineIndex(DefaultConfig())
	machine := newMachine(1000, 1000, 2, nil)
	require.NoError(t, mi.AddMachine(machine))
	require.NoError(t, mi.RemoveMachine(machine.ID))
	assert.Empty(t, mi.Slots(machine.ID))
}

func TestMachineIndex_MachineAndIndexForEC(t *testing.T) {
	mi := newMachineIndex(DefaultConfig())
	machine := newMachine(1000, 1000, 2, nil)
	require.NoError(t, mi.AddMachine(machine))

	slots := mi.Slots(machine.ID)
	gotMachine, gotIndex, found := mi.MachineAndIndexForEC(slots[1].EC)
	require.True(t, found)
	assert.Equal(t, machine.ID, gotMachine)
	assert.Equal(t, uint64(1), gotIndex)

	_, _, found = mi.MachineAndIndexForEC(EquivClassId(999999))
	assert.False(t, found)
}
