package model

// CompartmentCount is fixed by the robot hardware.
const CompartmentCount = 3

// CompartmentBoard maps each physical slot to the delivery occupying it,
// or "" when empty. The board is always written as a whole document so a
// single compare-and-swap covers every slot.
type CompartmentBoard struct {
	Compartment1 string `json:"compartment1"`
	Compartment2 string `json:"compartment2"`
	Compartment3 string `json:"compartment3"`
}

// Slot returns the occupant of slot n (1-based), or "" for unknown slots.
func (b *CompartmentBoard) Slot(n int) string {
	switch n {
	case 1:
		return b.Compartment1
	case 2:
		return b.Compartment2
	case 3:
		return b.Compartment3
	}
	return ""
}

// SetSlot assigns slot n. Out-of-range slots are ignored.
func (b *CompartmentBoard) SetSlot(n int, deliveryID string) {
	switch n {
	case 1:
		b.Compartment1 = deliveryID
	case 2:
		b.Compartment2 = deliveryID
	case 3:
		b.Compartment3 = deliveryID
	}
}

// FirstFree scans slots in fixed order and returns the first empty one,
// or 0 when the board is full.
func (b *CompartmentBoard) FirstFree() int {
	for n := 1; n <= CompartmentCount; n++ {
		if b.Slot(n) == "" {
			return n
		}
	}
	return 0
}

// SlotOf returns the slot holding deliveryID, or 0 when not held.
func (b *CompartmentBoard) SlotOf(deliveryID string) int {
	if deliveryID == "" {
		return 0
	}
	for n := 1; n <= CompartmentCount; n++ {
		if b.Slot(n) == deliveryID {
			return n
		}
	}
	return 0
}

// Occupied counts non-empty slots.
func (b *CompartmentBoard) Occupied() int {
	count := 0
	for n := 1; n <= CompartmentCount; n++ {
		if b.Slot(n) != "" {
			count++
		}
	}
	return count
}
