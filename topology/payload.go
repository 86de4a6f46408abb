package topology

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
)

// PayloadSlots is the number of timeslots of an MST link.
const PayloadSlots = 64

// PayloadTable maps each timeslot to the virtual channel that owns it. Zero
// marks a free slot. Slot 0 carries the MTP header and is never assigned to
// a stream.
type PayloadTable [PayloadSlots]uint8

// PayloadAllocation is the hook item of a payload table change.
type PayloadAllocation struct {
	VcID  uint8
	Start int
	Count int
}

// CheckRange verifies that count slots from start can be given to vcID.
// Channel 0 releases slots and may cover the whole table.
func (t *PayloadTable) CheckRange(vcID uint8, start, count int) error {
	if start < 0 || count < 0 || count > PayloadSlots {
		return fmt.Errorf("%w: %d timeslots from %d",
			dp.ErrInvalidArgument, count, start)
	}

	if vcID == 0 {
		if start+count > PayloadSlots {
			return fmt.Errorf("%w: %d timeslots from %d",
				dp.ErrInvalidArgument, count, start)
		}

		return nil
	}

	if start == 0 || start+count-1 > PayloadSlots-1 {
		return fmt.Errorf("%w: %d timeslots from %d for VC %d",
			dp.ErrBufferTooSmall, count, start, vcID)
	}

	for i := start; i < start+count; i++ {
		if t[i] != 0 && t[i] != vcID {
			return fmt.Errorf("%w: timeslot %d held by VC %d",
				dp.ErrBufferTooSmall, i, t[i])
		}
	}

	return nil
}

// Assign gives count slots from start to vcID.
func (t *PayloadTable) Assign(vcID uint8, start, count int) error {
	if err := t.CheckRange(vcID, start, count); err != nil {
		return err
	}

	t.fill(vcID, start, count)

	return nil
}

// fill gives count slots from start to vcID without checking the range.
func (t *PayloadTable) fill(vcID uint8, start, count int) {
	for i := start; i < start+count; i++ {
		t[i] = vcID
	}
}

// Remove frees the slots of vcID and moves the channels behind it forward
// so that the allocated slots stay contiguous.
func (t *PayloadTable) Remove(vcID uint8) {
	out := PayloadTable{}
	j := 1

	for i := 1; i < PayloadSlots; i++ {
		if t[i] == 0 || t[i] == vcID {
			continue
		}

		out[j] = t[i]
		j++
	}

	*t = out
}

// Clear frees every slot.
func (t *PayloadTable) Clear() {
	*t = PayloadTable{}
}

// Slots returns the number of slots held by vcID.
func (t PayloadTable) Slots(vcID uint8) int {
	n := 0

	for _, v := range t {
		if v == vcID {
			n++
		}
	}

	return n
}

// Free returns the number of slots, excluding slot 0, that no channel holds.
func (t PayloadTable) Free() int {
	return t.Slots(0) - 1
}
