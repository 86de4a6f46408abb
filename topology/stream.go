package topology

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
)

// NumStreams is the number of MST streams a source can drive. Stream IDs
// run from 1 and double as virtual channel IDs.
const NumStreams = 4

// Stream is the configuration of one MST stream.
type Stream struct {
	Enabled   bool
	Target    sideband.Target
	PBN       uint16
	Timeslots int

	allocated bool
}

// Allocated returns true once the stream's payload has been allocated.
func (s Stream) Allocated() bool {
	return s.allocated
}

// TimeslotsForPbn returns the number of timeslots needed to carry pbn on a
// link of the given rate and lane count.
func TimeslotsForPbn(pbn uint16, rate dp.LinkRate, lanes int) (int, error) {
	var perLane int

	switch rate {
	case dp.LinkRate162:
		perLane = 3
	case dp.LinkRate270:
		perLane = 5
	case dp.LinkRate540:
		perLane = 10
	case dp.LinkRate810:
		perLane = 15
	default:
		return 0, fmt.Errorf("%w: link rate %s", dp.ErrInvalidArgument, rate)
	}

	if !dp.ValidLaneCount(lanes) {
		return 0, fmt.Errorf("%w: lane count %d", dp.ErrInvalidArgument, lanes)
	}

	perSlot := perLane * lanes

	return (int(pbn) + perSlot - 1) / perSlot, nil
}

// Stream returns the configuration of stream id.
func (m *Manager) Stream(id int) (Stream, error) {
	if err := checkStreamID(id); err != nil {
		return Stream{}, err
	}

	return m.streams[id-1], nil
}

// EnableStream marks stream id as part of the next payload allocation.
func (m *Manager) EnableStream(id int, enable bool) error {
	if err := checkStreamID(id); err != nil {
		return err
	}

	m.streams[id-1].Enabled = enable

	return nil
}

// SetStreamSink routes stream id to the sink at position i of the sink
// list.
func (m *Manager) SetStreamSink(id int, i int) error {
	if err := checkStreamID(id); err != nil {
		return err
	}

	s, err := m.Sink(i)
	if err != nil {
		return err
	}

	m.streams[id-1].Target = s.Target

	return nil
}

// SetStreamTarget routes stream id to the device at t.
func (m *Manager) SetStreamTarget(id int, t sideband.Target) error {
	if err := checkStreamID(id); err != nil {
		return err
	}

	m.streams[id-1].Target = t

	return nil
}

// SetStreamPbn sets the payload bandwidth of stream id and derives its
// timeslot count for the given link configuration.
func (m *Manager) SetStreamPbn(id int, pbn uint16, rate dp.LinkRate, lanes int) error {
	if err := checkStreamID(id); err != nil {
		return err
	}

	slots, err := TimeslotsForPbn(pbn, rate, lanes)
	if err != nil {
		return err
	}

	m.streams[id-1].PBN = pbn
	m.streams[id-1].Timeslots = slots

	return nil
}

// AllocatePayloadStreams lays the enabled streams out back to back from
// timeslot 1, triggers ACT and then reserves each stream's bandwidth along
// its path with ALLOCATE_PAYLOAD.
func (m *Manager) AllocatePayloadStreams() error {
	start := 1

	for i := range m.streams {
		s := &m.streams[i]
		if !s.Enabled {
			continue
		}

		if s.Target.LinkCountTotal < 2 {
			return fmt.Errorf("%w: stream %d has no sink",
				dp.ErrInvalidArgument, i+1)
		}

		if err := m.AllocateVcID(uint8(i+1), s.Timeslots, start); err != nil {
			return fmt.Errorf("stream %d: %w", i+1, err)
		}

		start += s.Timeslots
	}

	if err := m.SendACT(); err != nil {
		return err
	}

	for i := range m.streams {
		s := &m.streams[i]
		if !s.Enabled {
			continue
		}

		if err := m.AllocatePayloadSideband(s.Target, uint8(i+1), s.PBN); err != nil {
			return fmt.Errorf("stream %d: %w", i+1, err)
		}

		s.allocated = true
	}

	return nil
}

func checkStreamID(id int) error {
	if id < 1 || id > NumStreams {
		return fmt.Errorf("%w: stream %d", dp.ErrInvalidArgument, id)
	}

	return nil
}
