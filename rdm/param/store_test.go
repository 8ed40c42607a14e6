package param

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daedaluz/dmxrdm/rdm"
)

func TestNewStoreEnforcesMinimumHeap(t *testing.T) {
	s := NewStore(0, 0)
	require.Equal(t, 53, s.HeapCap())
}

func TestAddNewThenGetSet(t *testing.T) {
	s := NewStore(64, 8)
	err := s.AddNew(Definition{PID: rdm.PIDDeviceLabel, Classes: CCGet | CCSet, PDLSize: 4, AllocSize: 4}, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	out := make([]byte, 4)
	n, err := s.Get(rdm.PIDDeviceLabel, out)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{1, 2, 3, 4}, out)

	n, err = s.Set(rdm.PIDDeviceLabel, []byte{9, 9, 9, 9})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	s.Get(rdm.PIDDeviceLabel, out)
	require.Equal(t, []byte{9, 9, 9, 9}, out)
}

func TestAddNewDuplicatePIDFails(t *testing.T) {
	s := NewStore(64, 8)
	def := Definition{PID: rdm.PIDDeviceLabel, AllocSize: 4}
	require.NoError(t, s.AddNew(def, nil))
	require.Error(t, s.AddNew(def, nil))
}

func TestAddNewExhaustsHeap(t *testing.T) {
	s := NewStore(53, 8)
	err := s.AddNew(Definition{PID: rdm.PIDDeviceLabel, AllocSize: 60}, nil)
	require.Error(t, err)
}

func TestGetUnregisteredPIDFails(t *testing.T) {
	s := NewStore(64, 8)
	_, err := s.Get(rdm.PIDDeviceInfo, make([]byte, 4))
	require.Error(t, err)
}

func TestDeterministicPIDHasNoStorage(t *testing.T) {
	s := NewStore(64, 8)
	require.NoError(t, s.AddDeterministic(Definition{PID: rdm.PIDDeviceInfo}, func(req Request) Response {
		return Ack([]byte{1})
	}))
	_, err := s.Get(rdm.PIDDeviceInfo, make([]byte, 4))
	require.Error(t, err)

	h, ok := s.Handler(rdm.PIDDeviceInfo)
	require.True(t, ok)
	resp := h(Request{})
	require.Equal(t, RespAck, resp.Kind)
}

func TestAddAliasViewsBaseStorage(t *testing.T) {
	s := NewStore(64, 8)
	require.NoError(t, s.AddNew(Definition{PID: rdm.PIDDMXPersonality, AllocSize: 2}, []byte{3, 7}))
	require.NoError(t, s.AddAlias(Definition{PID: rdm.PIDDMXPersonalityDescription}, rdm.PIDDMXPersonality, 0, 1))

	out := make([]byte, 1)
	n, err := s.Get(rdm.PIDDMXPersonalityDescription, out)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte(3), out[0])

	// Writing through the base is visible through the alias.
	s.Set(rdm.PIDDMXPersonality, []byte{9, 7})
	s.Get(rdm.PIDDMXPersonalityDescription, out)
	require.Equal(t, byte(9), out[0])
}

func TestAddAliasRejectsUnknownBase(t *testing.T) {
	s := NewStore(64, 8)
	err := s.AddAlias(Definition{PID: rdm.PIDDeviceLabel}, rdm.PIDDMXPersonality, 0, 1)
	require.Error(t, err)
}

func TestAddAliasRejectsOutOfRangeOffset(t *testing.T) {
	s := NewStore(64, 8)
	require.NoError(t, s.AddNew(Definition{PID: rdm.PIDDMXPersonality, AllocSize: 2}, nil))
	err := s.AddAlias(Definition{PID: rdm.PIDDeviceLabel}, rdm.PIDDMXPersonality, 1, 5)
	require.Error(t, err)
}

func TestSetHandlerOverridesDispatch(t *testing.T) {
	s := NewStore(64, 8)
	require.NoError(t, s.AddNew(Definition{PID: rdm.PIDDeviceLabel, AllocSize: 4}, nil))
	called := false
	require.NoError(t, s.SetHandler(rdm.PIDDeviceLabel, func(req Request) Response {
		called = true
		return Ack(nil)
	}))
	h, ok := s.Handler(rdm.PIDDeviceLabel)
	require.True(t, ok)
	h(Request{})
	require.True(t, called)
}

func TestDescriptionOnlyForManufacturerSpecificRange(t *testing.T) {
	s := NewStore(64, 8)
	require.NoError(t, s.AddNew(Definition{PID: rdm.PIDDeviceLabel, AllocSize: 4, Description: "label"}, nil))
	_, ok := s.Description(rdm.PIDDeviceLabel)
	require.False(t, ok, "required PIDs are not manufacturer-specific")

	require.NoError(t, s.AddNew(Definition{PID: 0x8001, AllocSize: 1, Description: "custom"}, nil))
	desc, ok := s.Description(0x8001)
	require.True(t, ok)
	require.Equal(t, "custom", desc)
}

func TestQueueDeduplicatesAndFIFOOrder(t *testing.T) {
	s := NewStore(64, 4)
	s.Queue(rdm.PIDDeviceLabel)
	s.Queue(rdm.PIDDeviceInfo)
	s.Queue(rdm.PIDDeviceLabel) // duplicate, no-op
	require.Equal(t, 2, s.QueueLen())

	pid, ok := s.PopQueued()
	require.True(t, ok)
	require.Equal(t, rdm.PIDDeviceLabel, pid)
	pid, ok = s.PopQueued()
	require.True(t, ok)
	require.Equal(t, rdm.PIDDeviceInfo, pid)
	_, ok = s.PopQueued()
	require.False(t, ok)
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	s := NewStore(64, 2)
	s.Queue(1)
	s.Queue(2)
	s.Queue(3) // ring is full at 2; oldest (1) is dropped
	require.Equal(t, 2, s.QueueLen())
	pid, _ := s.PopQueued()
	require.Equal(t, rdm.PID(2), pid)
}

func TestSetAndQueueEnqueuesOnSuccess(t *testing.T) {
	s := NewStore(64, 8)
	require.NoError(t, s.AddNew(Definition{PID: rdm.PIDDeviceLabel, AllocSize: 4}, nil))
	_, err := s.SetAndQueue(rdm.PIDDeviceLabel, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, 1, s.QueueLen())
}

func TestListReturnsInsertionOrder(t *testing.T) {
	s := NewStore(64, 8)
	require.NoError(t, s.AddNew(Definition{PID: rdm.PIDDeviceLabel, AllocSize: 1}, nil))
	require.NoError(t, s.AddNew(Definition{PID: rdm.PIDDeviceInfo, AllocSize: 1}, nil))
	out := make([]rdm.PID, 2)
	n := s.List(out)
	require.Equal(t, 2, n)
	require.Equal(t, []rdm.PID{rdm.PIDDeviceLabel, rdm.PIDDeviceInfo}, out)
}

func TestCommandClassSetAllows(t *testing.T) {
	s := CCGet | CCSet
	require.True(t, s.Allows(rdm.CCGetCommand))
	require.True(t, s.Allows(rdm.CCSetCommand))
	require.False(t, s.Allows(rdm.CCDiscoveryCommand))
}
