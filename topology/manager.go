package topology

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
)

// Manager is the transmitter-side MST topology manager.
type Manager struct {
	*dp.HookableBase

	name            string
	channel         AuxChannel
	messenger       Messenger
	bus             regio.Bus
	timer           regio.Timer
	sink            dp.EventSink
	statusPollLimit int

	root    Node
	hasRoot bool
	nodes   *Arena
	guids   GUIDPool
	table   PayloadTable
	streams [NumStreams]Stream
	mst     bool
}

// Name returns the name of the manager.
func (m *Manager) Name() string {
	return m.name
}

// Root returns the branch directly attached to the source, if discovery
// reached it.
func (m *Manager) Root() (Node, bool) {
	return m.root, m.hasRoot
}

// Nodes returns the devices found behind the root branch.
func (m *Manager) Nodes() []Node {
	return m.nodes.Nodes()
}

// NumSinks returns the length of the sink list.
func (m *Manager) NumSinks() int {
	return m.nodes.NumSinks()
}

// Sink returns the node at position i of the sink list.
func (m *Manager) Sink(i int) (Node, error) {
	if i < 0 || i >= m.nodes.NumSinks() {
		return Node{}, fmt.Errorf("%w: sink %d of %d",
			dp.ErrInvalidArgument, i, m.nodes.NumSinks())
	}

	return m.nodes.Sink(i), nil
}

// Sinks returns the sink list in its current order.
func (m *Manager) Sinks() []Node {
	sinks := make([]Node, 0, m.nodes.NumSinks())
	for i := 0; i < m.nodes.NumSinks(); i++ {
		sinks = append(sinks, m.nodes.Sink(i))
	}

	return sinks
}

// PayloadTable returns a copy of the local payload table.
func (m *Manager) PayloadTable() PayloadTable {
	return m.table
}

// MstEnabled returns true after a successful EnableMst.
func (m *Manager) MstEnabled() bool {
	return m.mst
}

// MstCapable returns true if the attached device is DP1.2 or later and
// reports MST capability.
func (m *Manager) MstCapable() (bool, error) {
	rev := []byte{0}
	if err := m.channel.Read(dp.DpcdRev, rev); err != nil {
		return false, err
	}

	if rev[0] < 0x12 {
		return false, nil
	}

	mstm := []byte{0}
	if err := m.channel.Read(dp.DpcdMstmCap, mstm); err != nil {
		return false, err
	}

	return mstm[0]&dp.MstCapMask != 0, nil
}

// EnableMst switches both ends of the link to MST mode.
func (m *Manager) EnableMst() error {
	capable, err := m.MstCapable()
	if err != nil {
		return err
	}

	if !capable {
		return fmt.Errorf("%w: attached device is not MST capable",
			dp.ErrProtocolFailure)
	}

	if err := m.channel.Write(dp.DpcdBranchDeviceCtrl, []byte{0}); err != nil {
		return err
	}

	ctrl := dp.UpIsSrc | dp.UpReqEn | dp.MstEn
	if err := m.channel.Write(dp.DpcdMstmCtrl, []byte{ctrl}); err != nil {
		return err
	}

	m.bus.WriteReg(regio.TxMstConfig, regio.MstConfigEnable)
	m.mst = true

	return nil
}

// DisableMst returns both ends of the link to SST mode.
func (m *Manager) DisableMst() error {
	if err := m.channel.Write(dp.DpcdMstmCtrl, []byte{0}); err != nil {
		return err
	}

	m.bus.WriteReg(regio.TxMstConfig, 0)
	m.mst = false

	return nil
}

// AllocateVcID gives count timeslots starting at start to the virtual
// channel vcID. The TX payload buffer and the sink's payload table are both
// updated. Channel 0 with 64 slots from 0 clears the whole table.
func (m *Manager) AllocateVcID(vcID uint8, count, start int) error {
	if err := m.table.CheckRange(vcID, start, count); err != nil {
		return err
	}

	err := m.channel.Write(dp.DpcdPayloadTableStatus,
		[]byte{dp.PayloadTableUpdated})
	if err != nil {
		return err
	}

	for i := start; i < start+count; i++ {
		m.bus.WriteReg(regio.TxVcPayloadBuffer+uint32(4*i), uint32(vcID))
	}

	m.table.fill(vcID, start, count)

	m.timer.DelayUs(delay1ms)

	slots := byte(count)
	if vcID == 0 {
		slots = 0x3F
	}

	err = m.channel.Write(dp.DpcdPayloadAllocSet,
		[]byte{vcID, byte(start), slots})
	if err != nil {
		return err
	}

	if err := m.waitStatus(dp.PayloadTableUpdated); err != nil {
		return fmt.Errorf("payload table update for VC %d: %w", vcID, err)
	}

	m.timer.DelayUs(delay1ms)

	m.InvokeHook(dp.HookCtx{
		Domain: m,
		Pos:    dp.HookPosPayloadAllocated,
		Item:   PayloadAllocation{VcID: vcID, Start: start, Count: count},
	})
	m.sink.PayloadTableChanged(vcID, start, count)

	return nil
}

// SendACT triggers the allocation change trigger sequence and waits for the
// sink to acknowledge it.
func (m *Manager) SendACT() error {
	m.timer.DelayUs(actDelayUs)
	m.bus.WriteReg(regio.TxMstConfig, regio.MstConfigActTrigger)

	if err := m.waitStatus(dp.PayloadActHandled); err != nil {
		return fmt.Errorf("ACT: %w", err)
	}

	return m.channel.Write(dp.DpcdPayloadTableStatus,
		[]byte{dp.PayloadActHandled})
}

// ClearPayloadTable frees every timeslot and broadcasts
// CLEAR_PAYLOAD_ID_TABLE so that every branch restores its bandwidth.
func (m *Manager) ClearPayloadTable() error {
	if err := m.AllocateVcID(0, PayloadSlots, 0); err != nil {
		return err
	}

	for i := range m.streams {
		m.streams[i].allocated = false
	}

	h, body := sideband.ClearPayloadIDTableRequest()
	if _, err := m.messenger.Transact(h, body); err != nil {
		return fmt.Errorf("%s: %w", sideband.ClearPayloadIDTable, err)
	}

	return nil
}

func (m *Manager) waitStatus(bit uint8) error {
	status := []byte{0}

	for i := 0; i < m.statusPollLimit; i++ {
		if err := m.channel.Read(dp.DpcdPayloadTableStatus, status); err != nil {
			return err
		}

		if status[0]&bit != 0 {
			return nil
		}

		m.timer.DelayUs(statusPollDelayUs)
	}

	return fmt.Errorf("%w: payload table status bit 0x%02X not set after %d polls",
		dp.ErrTimeout, bit, m.statusPollLimit)
}
