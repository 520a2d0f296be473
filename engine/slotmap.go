package engine

import (
	"github.com/seosaudio/seos"
)

// InvalidSlot is returned for channels and slots outside the map's domain.
const InvalidSlot = -1

// SlotMap is a bijection from stable channel IDs to dense slot indices in
// [0, MaxTracks); slot MasterSlot is reserved for the master bus. A SlotMap is
// immutable after construction: the control thread builds a new one at a safe
// point (transport stopped, no callback in flight) and publishes it by
// pointer swap, so all audio-thread reads are lock-free.
type SlotMap struct {
	idToSlot map[int32]int
	slotToID [seos.NumSlots]int32
	count    int
	overflow []int32 // channel IDs that did not fit; unroutable
}

// NewSlotMap assigns slots to channel IDs in order. IDs beyond MaxTracks are
// recorded as overflow and left unmapped.
func NewSlotMap(ids []int32) *SlotMap {
	m := &SlotMap{idToSlot: make(map[int32]int, len(ids))}
	for i := range m.slotToID {
		m.slotToID[i] = -1
	}
	for _, id := range ids {
		if _, ok := m.idToSlot[id]; ok {
			continue
		}
		if m.count >= seos.MaxTracks {
			m.overflow = append(m.overflow, id)
			continue
		}
		m.idToSlot[id] = m.count
		m.slotToID[m.count] = id
		m.count++
	}
	return m
}

// SlotOf returns the dense slot for a channel ID, or InvalidSlot.
func (m *SlotMap) SlotOf(id int32) int {
	if id == seos.MasterRoute {
		return seos.MasterSlot
	}
	if slot, ok := m.idToSlot[id]; ok {
		return slot
	}
	return InvalidSlot
}

// IDOf returns the channel ID occupying a slot, or -1. Slot MasterSlot always
// answers MasterRoute.
func (m *SlotMap) IDOf(slot int) int32 {
	if slot == seos.MasterSlot {
		return seos.MasterRoute
	}
	if slot < 0 || slot >= seos.NumSlots {
		return -1
	}
	return m.slotToID[slot]
}

// Len returns the number of mapped channels, excluding the master.
func (m *SlotMap) Len() int { return m.count }

// Overflow returns the channel IDs that did not fit in the slot space.
func (m *SlotMap) Overflow() []int32 { return m.overflow }
