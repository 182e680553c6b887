package graph

import "fmt"

// Side is one of the four connection points of a node.
type Side string

// Sides. SideNone marks an edge endpoint that carries no anchor, used when
// a child had to be placed without a free slot.
const (
	SideNone   Side = ""
	SideLeft   Side = "left"
	SideBottom Side = "bottom"
	SideRight  Side = "right"
	SideTop    Side = "top"
)

// ScanOrder is the fixed priority in which free slots are searched.
var ScanOrder = [4]Side{SideLeft, SideBottom, SideRight, SideTop}

// Opposite returns the facing side.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	case SideTop:
		return SideBottom
	case SideBottom:
		return SideTop
	}
	return SideNone
}

// SlotState marks whether an anchor slot hosts an edge.
type SlotState string

// Slot states. The zero value is free.
const (
	SlotFree     SlotState = ""
	SlotOccupied SlotState = "occupied"
)

// Anchors is the slot record of an insight or detail node.
type Anchors struct {
	Left   SlotState `json:"left,omitempty" yaml:"left,omitempty"`
	Bottom SlotState `json:"bottom,omitempty" yaml:"bottom,omitempty"`
	Right  SlotState `json:"right,omitempty" yaml:"right,omitempty"`
	Top    SlotState `json:"top,omitempty" yaml:"top,omitempty"`
}

// Get returns the state of side s.
func (a Anchors) Get(s Side) SlotState {
	switch s {
	case SideLeft:
		return a.Left
	case SideBottom:
		return a.Bottom
	case SideRight:
		return a.Right
	case SideTop:
		return a.Top
	}
	return SlotFree
}

// With returns a copy of a with side s set to st.
func (a Anchors) With(s Side, st SlotState) Anchors {
	switch s {
	case SideLeft:
		a.Left = st
	case SideBottom:
		a.Bottom = st
	case SideRight:
		a.Right = st
	case SideTop:
		a.Top = st
	default:
		panic(fmt.Sprintf("graph: invalid side %q", s))
	}
	return a
}

// FirstFree returns the first free side in ScanOrder.
func (a Anchors) FirstFree() (Side, bool) {
	for _, s := range ScanOrder {
		if a.Get(s) == SlotFree {
			return s, true
		}
	}
	return SideNone, false
}

// Occupied returns the number of occupied sides.
func (a Anchors) Occupied() int {
	n := 0
	for _, s := range ScanOrder {
		if a.Get(s) == SlotOccupied {
			n++
		}
	}
	return n
}
