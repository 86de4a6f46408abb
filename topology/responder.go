package topology

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
)

const (
	// MaxPorts is the number of ports a responder can expose.
	MaxPorts = 16

	// MaxI2CEntries is the number of I2C devices mapped per port.
	MaxI2CEntries = 3
)

// I2CMapEntry makes Data readable at I2C address Address through
// REMOTE_I2C_READ. Offset is the last offset written by a request.
type I2CMapEntry struct {
	Address uint8
	Offset  uint8
	Data    []byte
}

// DpcdMap makes Data readable through REMOTE_DPCD_READ from address Start.
type DpcdMap struct {
	Start uint32
	Data  []byte
}

// RxPort is a port of the virtual topology presented by a responder.
type RxPort struct {
	Details      sideband.PortInfo
	Exposed      bool
	FullPBN      uint16
	AvailablePBN uint16

	I2C  []I2CMapEntry
	Dpcd DpcdMap
}

// Responder answers sideband down requests on the receiver side and keeps
// the receiver's payload table.
type Responder struct {
	*dp.HookableBase

	name      string
	messenger RequestMessenger
	bus       regio.Bus
	sink      dp.EventSink
	guid      sideband.GUID
	ports     [MaxPorts]RxPort
	table     PayloadTable
}

// Name returns the name of the responder.
func (r *Responder) Name() string {
	return r.name
}

// GUID returns the GUID of the responder.
func (r *Responder) GUID() sideband.GUID {
	return r.guid
}

// SetGUID sets the GUID reported in LINK_ADDRESS replies and NACKs.
func (r *Responder) SetGUID(g sideband.GUID) {
	r.guid = g
}

// Port returns a copy of port num.
func (r *Responder) Port(num uint8) (RxPort, error) {
	p, err := r.port(num)
	if err != nil {
		return RxPort{}, err
	}

	return *p, nil
}

// PayloadTable returns a copy of the receiver's payload table.
func (r *Responder) PayloadTable() PayloadTable {
	return r.table
}

// NumExposedPorts returns the number of ports listed in LINK_ADDRESS
// replies.
func (r *Responder) NumExposedPorts() int {
	n := 0

	for i := range r.ports {
		if r.ports[i].Exposed {
			n++
		}
	}

	return n
}

// ExposePort adds port num to or removes it from LINK_ADDRESS replies. The
// RX core's sink count follows the number of exposed ports.
func (r *Responder) ExposePort(num uint8, expose bool) error {
	p, err := r.port(num)
	if err != nil {
		return err
	}

	p.Exposed = expose
	p.Details.PortNumber = num
	r.bus.WriteReg(regio.RxSinkCount, uint32(r.NumExposedPorts()))

	return nil
}

// SetPortDetails sets what LINK_ADDRESS replies report for port num.
func (r *Responder) SetPortDetails(num uint8, details sideband.PortInfo) error {
	p, err := r.port(num)
	if err != nil {
		return err
	}

	details.PortNumber = num
	p.Details = details

	return nil
}

// SetI2CMap maps data at I2C address addr of port num. An existing entry for
// the same address is replaced.
func (r *Responder) SetI2CMap(num uint8, addr uint8, data []byte) error {
	p, err := r.port(num)
	if err != nil {
		return err
	}

	for i := range p.I2C {
		if p.I2C[i].Address == addr {
			p.I2C[i] = I2CMapEntry{Address: addr, Data: data}
			return nil
		}
	}

	if len(p.I2C) >= MaxI2CEntries {
		return fmt.Errorf("%w: port %d maps %d I2C devices",
			dp.ErrCapacity, num, MaxI2CEntries)
	}

	p.I2C = append(p.I2C, I2CMapEntry{Address: addr, Data: data})

	return nil
}

// SetDpcdMap maps data into the DPCD of port num from address start.
func (r *Responder) SetDpcdMap(num uint8, start uint32, data []byte) error {
	p, err := r.port(num)
	if err != nil {
		return err
	}

	p.Dpcd = DpcdMap{Start: start, Data: data}

	return nil
}

// SetFullPbn sets the full bandwidth of port num and makes all of it
// available.
func (r *Responder) SetFullPbn(num uint8, pbn uint16) error {
	p, err := r.port(num)
	if err != nil {
		return err
	}

	p.FullPBN = pbn
	p.AvailablePBN = pbn

	return nil
}

// HandleDownRequest reads one down-request fragment. Once a request is
// complete it is answered through the down-reply buffer.
func (r *Responder) HandleDownRequest() error {
	req, done, err := r.messenger.ReceiveRequest()
	if err != nil {
		return err
	}

	if !done {
		return nil
	}

	h, body := r.reply(req)
	nacked := sideband.IsNack(body)

	if err := r.messenger.SendReply(h, body); err != nil {
		return fmt.Errorf("reply to %s: %w", req.ID(), err)
	}

	r.sink.DownRequestHandled(uint8(req.ID()), nacked)

	return nil
}

// AllocatePayloadStream applies the allocation latched in the RX MST
// allocation register. A count of 0 removes the channel and moves the
// channels behind it forward.
func (r *Responder) AllocatePayloadStream() error {
	alloc := r.bus.ReadReg(regio.RxMstAlloc)
	vcID := uint8(alloc & regio.RxMstAllocVcIDMask)
	start := int(alloc&regio.RxMstAllocStartTsMask) >> regio.RxMstAllocStartTsShift
	count := int(alloc&regio.RxMstAllocCountTsMask) >> regio.RxMstAllocCountTsShift

	switch {
	case vcID == 0 && start == 0 && count == 0x3F:
		r.table.Clear()
	case count == 0:
		r.table.Remove(vcID)
	default:
		if err := r.table.Assign(vcID, start, count); err != nil {
			return err
		}
	}

	for i, v := range r.table {
		r.bus.WriteReg(regio.RxVcPayloadTable+uint32(4*i), uint32(v))
	}

	regio.SetBits(r.bus, regio.RxMstCap, regio.RxMstCapVcpUpdate)

	r.InvokeHook(dp.HookCtx{
		Domain: r,
		Pos:    dp.HookPosPayloadAllocated,
		Item:   PayloadAllocation{VcID: vcID, Start: start, Count: count},
	})
	r.sink.PayloadTableChanged(vcID, start, count)

	return nil
}

// ServiceInterrupts reads the RX interrupt cause register and handles every
// cause it reports.
func (r *Responder) ServiceInterrupts() error {
	cause := r.bus.ReadReg(regio.RxInterruptCause)

	var errs []error

	if cause&regio.RxCauseDownRequest != 0 {
		if err := r.HandleDownRequest(); err != nil {
			errs = append(errs, err)
		}
	}

	if cause&regio.RxCausePayloadAlloc != 0 {
		if err := r.AllocatePayloadStream(); err != nil {
			errs = append(errs, err)
		}
	}

	if cause&regio.RxCauseTrainingLost != 0 {
		r.sink.TrainingLost()
	}

	if cause&regio.RxCauseUnplug != 0 {
		r.sink.Unplugged()
	}

	return errors.Join(errs...)
}

func (r *Responder) port(num uint8) (*RxPort, error) {
	if int(num) >= MaxPorts {
		return nil, fmt.Errorf("%w: port %d", dp.ErrInvalidArgument, num)
	}

	return &r.ports[num], nil
}

func (r *Responder) reply(req sideband.Request) (sideband.Header, []byte) {
	id := req.ID()
	h := sideband.ReplyHeader()

	switch id {
	case sideband.LinkAddress:
		return h, r.linkAddress()
	case sideband.ClearPayloadIDTable:
		h.Broadcast = true
		h.Path = true

		return h, r.clearPayloadIDs()
	case sideband.AllocatePayload:
		return h, r.allocatePayload(req.Body)
	case sideband.EnumPathResources:
		return h, r.enumPathResources(req.Body)
	case sideband.RemoteDpcdRead:
		return h, r.remoteDpcdRead(req.Body)
	case sideband.RemoteI2CRead:
		return h, r.remoteI2CRead(req.Body)
	default:
		return h, r.nack(id)
	}
}

func (r *Responder) nack(id sideband.RequestID) []byte {
	return sideband.NackReply(id, r.guid, sideband.NackReasonWriteFailure)
}

func (r *Responder) linkAddress() []byte {
	reply := sideband.LinkAddressReply{GUID: r.guid}

	for i := range r.ports {
		if r.ports[i].Exposed {
			reply.Ports = append(reply.Ports, r.ports[i].Details)
		}
	}

	return reply.Encode()
}

func (r *Responder) clearPayloadIDs() []byte {
	for i := range r.ports {
		r.ports[i].AvailablePBN = r.ports[i].FullPBN
	}

	return []byte{byte(sideband.ClearPayloadIDTable)}
}

func (r *Responder) exposedPort(body []byte, minLen int) (*RxPort, bool) {
	if len(body) < minLen {
		return nil, false
	}

	p := &r.ports[body[1]>>4]

	return p, p.Exposed
}

func (r *Responder) allocatePayload(body []byte) []byte {
	p, ok := r.exposedPort(body, 5)
	if !ok {
		return r.nack(sideband.AllocatePayload)
	}

	pbn := uint16(body[3])<<8 | uint16(body[4])
	if pbn == 0 {
		p.AvailablePBN = p.FullPBN
	} else {
		p.AvailablePBN = 0
	}

	return append([]byte(nil), body[:5]...)
}

func (r *Responder) enumPathResources(body []byte) []byte {
	p, ok := r.exposedPort(body, 2)
	if !ok {
		return r.nack(sideband.EnumPathResources)
	}

	return sideband.PathResources{
		Port:         body[1] >> 4,
		FullPBN:      p.FullPBN,
		AvailablePBN: p.AvailablePBN,
	}.Encode()
}

func (r *Responder) remoteDpcdRead(body []byte) []byte {
	p, ok := r.exposedPort(body, 5)
	if !ok || p.Dpcd.Data == nil {
		return r.nack(sideband.RemoteDpcdRead)
	}

	if int(body[4]) > sideband.MaxReadReplyData {
		return r.nack(sideband.RemoteDpcdRead)
	}

	addr := uint32(body[1]&0xF)<<16 | uint32(body[2])<<8 | uint32(body[3])
	data := make([]byte, body[4])

	for i := range data {
		a := addr + uint32(i)
		if a >= p.Dpcd.Start && a-p.Dpcd.Start < uint32(len(p.Dpcd.Data)) {
			data[i] = p.Dpcd.Data[a-p.Dpcd.Start]
		}
	}

	return sideband.ReadReply(sideband.RemoteDpcdRead, body[1]>>4, data)
}

func (r *Responder) remoteI2CRead(body []byte) []byte {
	p, ok := r.exposedPort(body, 2)
	if !ok {
		return r.nack(sideband.RemoteI2CRead)
	}

	idx := 2

	for i := 0; i < int(body[1]&0x3); i++ {
		if idx+2 > len(body) {
			return r.nack(sideband.RemoteI2CRead)
		}

		n := int(body[idx+1])
		if idx+2+n+1 > len(body) {
			return r.nack(sideband.RemoteI2CRead)
		}

		e := p.i2cEntry(body[idx] & 0x7F)
		if e == nil {
			return r.nack(sideband.RemoteI2CRead)
		}

		if n == 1 {
			e.Offset = body[idx+2]
		}

		idx += 2 + n + 1
	}

	if idx+2 > len(body) {
		return r.nack(sideband.RemoteI2CRead)
	}

	e := p.i2cEntry(body[idx] & 0x7F)
	if e == nil || int(body[idx+1]) > sideband.MaxReadReplyData {
		return r.nack(sideband.RemoteI2CRead)
	}

	data := make([]byte, body[idx+1])
	for i := range data {
		if off := int(e.Offset) + i; off < len(e.Data) {
			data[i] = e.Data[off]
		}
	}

	return sideband.ReadReply(sideband.RemoteI2CRead, body[1]>>4, data)
}

func (p *RxPort) i2cEntry(addr uint8) *I2CMapEntry {
	for i := range p.I2C {
		if p.I2C[i].Address == addr {
			return &p.I2C[i]
		}
	}

	return nil
}
