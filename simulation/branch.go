package simulation

import (
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
)

// DefaultFullPBN is the payload bandwidth a port reports unless configured.
const DefaultFullPBN = 2560

// segmentPointer is the I2C address of the E-DDC segment pointer.
const segmentPointer = 0x30

// RemoteSink is an SST sink attached to a branch port.
type RemoteSink struct {
	DPCD       *DPCDSpace
	MsgCapable bool

	i2c     map[uint8][]byte
	segment uint8
}

// NewRemoteSink creates a DP1.2 sink whose EDID is reachable at I2C
// address 0x50.
func NewRemoteSink(edid []byte) *RemoteSink {
	s := &RemoteSink{
		DPCD: NewDPCDSpace(),
		i2c:  make(map[uint8][]byte),
	}
	s.DPCD.Set(dp.DpcdRev, 0x12)

	if edid != nil {
		s.i2c[0x50] = edid
	}

	return s
}

// Port is a port of a simulated branch.
type Port struct {
	Number    uint8
	Input     bool
	Unplugged bool

	FullPBN      uint16
	AvailablePBN uint16

	Branch *Branch
	Sink   *RemoteSink
}

func (p *Port) plugged() bool {
	return !p.Unplugged && (p.Input || p.Branch != nil || p.Sink != nil)
}

func (p *Port) peerType() uint8 {
	switch {
	case !p.plugged():
		return sideband.PeerNone
	case p.Input:
		return sideband.PeerSource
	case p.Branch != nil:
		return sideband.PeerBranch
	default:
		return sideband.PeerSstSink
	}
}

func (p *Port) dpcd() *DPCDSpace {
	switch {
	case p.Unplugged:
		return nil
	case p.Branch != nil:
		return p.Branch.DPCD
	case p.Sink != nil:
		return p.Sink.DPCD
	default:
		return nil
	}
}

// Branch is a simulated MST branch device. It answers the down requests
// addressed to it and forwards the others along the relative address.
type Branch struct {
	DPCD  *DPCDSpace
	Ports []*Port

	requests []sideband.RequestID
}

// NewBranch creates a DP1.2 branch with an input port 0 and no GUID.
func NewBranch() *Branch {
	b := &Branch{DPCD: NewDPCDSpace()}
	b.DPCD.Set(dp.DpcdRev, 0x12)
	b.DPCD.Set(dp.DpcdMstmCap, dp.MstCapMask)
	b.AddInputPort(0)

	return b
}

// GUID returns the GUID stored in the branch's DPCD.
func (b *Branch) GUID() sideband.GUID {
	g := sideband.GUID{}
	b.DPCD.Read(dp.DpcdGUID, g[:])

	return g
}

// SetGUID stores a GUID in the branch's DPCD.
func (b *Branch) SetGUID(g sideband.GUID) {
	b.DPCD.Write(dp.DpcdGUID, g[:])
}

// AddInputPort adds an upstream-facing port.
func (b *Branch) AddInputPort(num uint8) *Port {
	p := &Port{Number: num, Input: true}
	b.Ports = append(b.Ports, p)

	return p
}

// AddSink attaches an SST sink to a new output port.
func (b *Branch) AddSink(num uint8, s *RemoteSink) *Port {
	p := &Port{
		Number:       num,
		FullPBN:      DefaultFullPBN,
		AvailablePBN: DefaultFullPBN,
		Sink:         s,
	}
	b.Ports = append(b.Ports, p)

	return p
}

// AddBranch attaches a downstream branch to a new output port.
func (b *Branch) AddBranch(num uint8, child *Branch) *Port {
	p := &Port{
		Number:       num,
		FullPBN:      DefaultFullPBN,
		AvailablePBN: DefaultFullPBN,
		Branch:       child,
	}
	b.Ports = append(b.Ports, p)

	return p
}

// Port returns the port with the given number.
func (b *Branch) Port(num uint8) *Port {
	for _, p := range b.Ports {
		if p.Number == num {
			return p
		}
	}

	return nil
}

// Requests returns the kinds of the requests the branch answered itself.
func (b *Branch) Requests() []sideband.RequestID {
	return b.requests
}

// Handle answers a reassembled down request and returns the reply body.
func (b *Branch) Handle(h sideband.Header, body []byte) []byte {
	if len(body) == 0 {
		return sideband.NackReply(0, b.GUID(), sideband.NackReasonWriteFailure)
	}

	id := sideband.RequestID(body[0] & 0x7F)

	if h.Broadcast {
		if id == sideband.ClearPayloadIDTable {
			b.clearPayloadIDs()
			return []byte{byte(id)}
		}

		return sideband.NackReply(id, b.GUID(), sideband.NackReasonWriteFailure)
	}

	if h.LinkCountRemaining > 0 {
		return b.forward(h, body)
	}

	b.requests = append(b.requests, id)

	switch id {
	case sideband.LinkAddress:
		return b.linkAddress().Encode()
	case sideband.EnumPathResources:
		return b.enumPathResources(body)
	case sideband.AllocatePayload:
		return b.allocatePayload(body)
	case sideband.RemoteDpcdRead:
		return b.remoteDpcdRead(body)
	case sideband.RemoteDpcdWrite:
		return b.remoteDpcdWrite(body)
	case sideband.RemoteI2CRead:
		return b.remoteI2CRead(body)
	case sideband.RemoteI2CWrite:
		return b.remoteI2CWrite(body)
	default:
		return sideband.NackReply(id, b.GUID(), sideband.NackReasonWriteFailure)
	}
}

func (b *Branch) nack(body []byte) []byte {
	return sideband.NackReply(sideband.RequestID(body[0]&0x7F), b.GUID(),
		sideband.NackReasonWriteFailure)
}

func (b *Branch) forward(h sideband.Header, body []byte) []byte {
	hop := int(h.LinkCountTotal) - 1 - int(h.LinkCountRemaining)
	if hop < 0 || hop >= len(h.RelativeAddress) {
		return b.nack(body)
	}

	p := b.Port(h.RelativeAddress[hop])
	if p == nil || p.Unplugged || p.Branch == nil {
		return b.nack(body)
	}

	h.LinkCountRemaining--

	return p.Branch.Handle(h, body)
}

func (b *Branch) linkAddress() sideband.LinkAddressReply {
	r := sideband.LinkAddressReply{GUID: b.GUID()}

	for _, p := range b.Ports {
		info := sideband.PortInfo{
			Input:          p.Input,
			PeerDeviceType: p.peerType(),
			PortNumber:     p.Number,
			Plugged:        p.plugged(),
		}

		if mem := p.dpcd(); mem != nil && !p.Input {
			info.MsgCapable = p.Branch != nil || p.Sink.MsgCapable
			info.DPCDRev = mem.Get(dp.DpcdRev)
			mem.Read(dp.DpcdGUID, info.GUID[:])
			info.NumSdpStreams = 1
			info.NumSdpStreamSinks = 1
		}

		r.Ports = append(r.Ports, info)
	}

	return r
}

func (b *Branch) enumPathResources(body []byte) []byte {
	if len(body) < 2 {
		return b.nack(body)
	}

	p := b.Port(body[1] >> 4)
	if p == nil || p.Input {
		return b.nack(body)
	}

	return sideband.PathResources{
		Port:         p.Number,
		FullPBN:      p.FullPBN,
		AvailablePBN: p.AvailablePBN,
	}.Encode()
}

func (b *Branch) allocatePayload(body []byte) []byte {
	if len(body) < 5 {
		return b.nack(body)
	}

	p := b.Port(body[1] >> 4)
	if p == nil || p.Input {
		return b.nack(body)
	}

	pbn := uint16(body[3])<<8 | uint16(body[4])
	if pbn != 0 {
		p.AvailablePBN = 0
	} else {
		p.AvailablePBN = p.FullPBN
	}

	return []byte{body[0], body[1], body[2], body[3], body[4]}
}

func (b *Branch) clearPayloadIDs() {
	for _, p := range b.Ports {
		p.AvailablePBN = p.FullPBN

		if p.Branch != nil {
			p.Branch.clearPayloadIDs()
		}
	}
}

func (b *Branch) remoteDpcdRead(body []byte) []byte {
	if len(body) < 5 {
		return b.nack(body)
	}

	p := b.Port(body[1] >> 4)
	if p == nil || p.dpcd() == nil {
		return b.nack(body)
	}

	addr := uint32(body[1]&0xF)<<16 | uint32(body[2])<<8 | uint32(body[3])

	return sideband.ReadReply(sideband.RemoteDpcdRead, p.Number,
		p.dpcd().Slice(addr, int(body[4])))
}

func (b *Branch) remoteDpcdWrite(body []byte) []byte {
	if len(body) < 5 || len(body) < 5+int(body[4]) {
		return b.nack(body)
	}

	p := b.Port(body[1] >> 4)
	if p == nil || p.dpcd() == nil {
		return b.nack(body)
	}

	addr := uint32(body[1]&0xF)<<16 | uint32(body[2])<<8 | uint32(body[3])
	p.dpcd().Write(addr, body[5:5+int(body[4])])

	return []byte{byte(sideband.RemoteDpcdWrite), p.Number}
}

func (b *Branch) remoteI2CRead(body []byte) []byte {
	if len(body) < 2 {
		return b.nack(body)
	}

	p := b.Port(body[1] >> 4)
	if p == nil || p.Unplugged || p.Sink == nil {
		return b.nack(body)
	}

	offset := 0
	idx := 2

	for i := 0; i < int(body[1]&0x3); i++ {
		if idx+2 > len(body) {
			return b.nack(body)
		}

		n := int(body[idx+1])
		if idx+2+n+1 > len(body) {
			return b.nack(body)
		}

		if n == 1 {
			offset = int(body[idx+2])
		}

		idx += 2 + n + 1
	}

	if idx+2 > len(body) {
		return b.nack(body)
	}

	mem, ok := p.Sink.i2c[body[idx]&0x7F]
	if !ok {
		return b.nack(body)
	}

	offset += int(p.Sink.segment) * 256
	n := int(body[idx+1])
	data := make([]byte, n)

	for i := range data {
		if offset+i < len(mem) {
			data[i] = mem[offset+i]
		}
	}

	return sideband.ReadReply(sideband.RemoteI2CRead, p.Number, data)
}

func (b *Branch) remoteI2CWrite(body []byte) []byte {
	if len(body) < 4 || len(body) < 4+int(body[3]) {
		return b.nack(body)
	}

	p := b.Port(body[1] >> 4)
	if p == nil || p.Unplugged || p.Sink == nil {
		return b.nack(body)
	}

	data := body[4 : 4+int(body[3])]
	if body[2]&0x7F == segmentPointer && len(data) > 0 {
		p.Sink.segment = data[0]
		return []byte{byte(sideband.RemoteI2CWrite), p.Number}
	}

	mem, ok := p.Sink.i2c[body[2]&0x7F]
	if !ok {
		return b.nack(body)
	}

	if len(data) > 1 {
		offset := int(data[0])
		for i, v := range data[1:] {
			if offset+i < len(mem) {
				mem[offset+i] = v
			}
		}
	}

	return []byte{byte(sideband.RemoteI2CWrite), p.Number}
}
