package sideband

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
)

// RequestID identifies the kind of a sideband request. Replies echo it in
// the first body byte, with bit 7 set for a NACK.
type RequestID uint8

// Supported requests.
const (
	LinkAddress         RequestID = 0x01
	EnumPathResources   RequestID = 0x10
	AllocatePayload     RequestID = 0x11
	ClearPayloadIDTable RequestID = 0x14
	RemoteDpcdRead      RequestID = 0x20
	RemoteDpcdWrite     RequestID = 0x21
	RemoteI2CRead       RequestID = 0x22
	RemoteI2CWrite      RequestID = 0x23
)

// ReplyNack is the bit of the first reply byte that marks a NACK.
const ReplyNack = 0x80

// NackReasonWriteFailure is the reason code sent in generic NACKs.
const NackReasonWriteFailure = 0x01

// GUIDSize is the number of bytes in a device GUID.
const GUIDSize = 16

// GUID identifies an MST device.
type GUID [GUIDSize]byte

// IsZero returns true if no GUID has been assigned.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

func (g GUID) String() string {
	return fmt.Sprintf("%X-%X-%X-%X-%X", g[0:4], g[4:6], g[6:8], g[8:10], g[10:])
}

func (id RequestID) String() string {
	switch id {
	case LinkAddress:
		return "LINK_ADDRESS"
	case EnumPathResources:
		return "ENUM_PATH_RESOURCES"
	case AllocatePayload:
		return "ALLOCATE_PAYLOAD"
	case ClearPayloadIDTable:
		return "CLEAR_PAYLOAD_ID_TABLE"
	case RemoteDpcdRead:
		return "REMOTE_DPCD_READ"
	case RemoteDpcdWrite:
		return "REMOTE_DPCD_WRITE"
	case RemoteI2CRead:
		return "REMOTE_I2C_READ"
	case RemoteI2CWrite:
		return "REMOTE_I2C_WRITE"
	default:
		return fmt.Sprintf("RequestID(0x%02X)", uint8(id))
	}
}

// Peer device types reported in LINK_ADDRESS replies.
const (
	PeerNone         uint8 = 0
	PeerSource       uint8 = 1
	PeerBranch       uint8 = 2
	PeerSstSink      uint8 = 3
	PeerLegacyBranch uint8 = 4
)

// Target identifies a device by the number of links from the source and the
// output port taken at each branch on the way.
type Target struct {
	LinkCountTotal  uint8
	RelativeAddress []uint8
}

// RootTarget is the device directly attached to the source.
var RootTarget = Target{LinkCountTotal: 1}

// Child returns the device attached to the given port of t.
func (t Target) Child(port uint8) Target {
	rad := make([]uint8, 0, len(t.RelativeAddress)+1)
	rad = append(rad, t.RelativeAddress...)
	rad = append(rad, port)

	return Target{
		LinkCountTotal:  t.LinkCountTotal + 1,
		RelativeAddress: rad,
	}
}

// Parent returns the branch device t is attached to and the port of that
// branch that leads to t.
func (t Target) Parent() (Target, uint8, error) {
	if t.LinkCountTotal < 2 || len(t.RelativeAddress) != int(t.LinkCountTotal)-1 {
		return Target{}, 0, fmt.Errorf("%w: device at link count %d has no parent",
			dp.ErrInvalidArgument, t.LinkCountTotal)
	}

	n := len(t.RelativeAddress)
	parent := Target{
		LinkCountTotal:  t.LinkCountTotal - 1,
		RelativeAddress: append([]uint8(nil), t.RelativeAddress[:n-1]...),
	}

	return parent, t.RelativeAddress[n-1], nil
}

// Header returns the header of a request addressed to t.
func (t Target) Header() Header {
	return Header{
		LinkCountTotal:     t.LinkCountTotal,
		LinkCountRemaining: t.LinkCountTotal - 1,
		RelativeAddress:    append([]uint8(nil), t.RelativeAddress...),
	}
}

func (t Target) String() string {
	s := fmt.Sprintf("LCT%d", t.LinkCountTotal)
	for _, p := range t.RelativeAddress {
		s += fmt.Sprintf(".%d", p)
	}

	return s
}

// LinkAddressRequest asks the branch at t for its ports.
func LinkAddressRequest(t Target) (Header, []byte) {
	return t.Header(), []byte{byte(LinkAddress)}
}

// EnumPathResourcesRequest asks for the payload bandwidth of the path to t.
func EnumPathResourcesRequest(t Target) (Header, []byte, error) {
	parent, port, err := t.Parent()
	if err != nil {
		return Header{}, nil, err
	}

	h := parent.Header()
	h.Path = true

	return h, []byte{byte(EnumPathResources), port << 4}, nil
}

// AllocatePayloadRequest reserves pbn on the path to t for the virtual
// channel vcID. A pbn of 0 releases the reservation.
func AllocatePayloadRequest(
	t Target,
	vcID uint8,
	pbn uint16,
) (Header, []byte, error) {
	parent, port, err := t.Parent()
	if err != nil {
		return Header{}, nil, err
	}

	h := parent.Header()
	h.Path = true

	body := []byte{
		byte(AllocatePayload),
		port << 4,
		vcID & 0x7F,
		byte(pbn >> 8),
		byte(pbn),
	}

	return h, body, nil
}

// ClearPayloadIDTableRequest is broadcast to every device of the tree.
func ClearPayloadIDTableRequest() (Header, []byte) {
	h := Header{
		LinkCountTotal:     1,
		LinkCountRemaining: 6,
		Broadcast:          true,
		Path:               true,
	}

	return h, []byte{byte(ClearPayloadIDTable)}
}

// RemoteDpcdReadRequest reads n bytes of the DPCD of t starting at addr.
func RemoteDpcdReadRequest(t Target, addr uint32, n int) (Header, []byte, error) {
	parent, port, err := t.Parent()
	if err != nil {
		return Header{}, nil, err
	}

	if n <= 0 || n > 0xFF {
		return Header{}, nil, fmt.Errorf("%w: remote DPCD read of %d bytes",
			dp.ErrInvalidArgument, n)
	}

	body := []byte{
		byte(RemoteDpcdRead),
		port<<4 | byte(addr>>16)&0xF,
		byte(addr >> 8),
		byte(addr),
		byte(n),
	}

	return parent.Header(), body, nil
}

// RemoteDpcdWriteRequest writes data to the DPCD of t starting at addr.
func RemoteDpcdWriteRequest(t Target, addr uint32, data []byte) (Header, []byte, error) {
	parent, port, err := t.Parent()
	if err != nil {
		return Header{}, nil, err
	}

	if len(data) == 0 || len(data) > 0xFF {
		return Header{}, nil, fmt.Errorf("%w: remote DPCD write of %d bytes",
			dp.ErrInvalidArgument, len(data))
	}

	body := []byte{
		byte(RemoteDpcdWrite),
		port<<4 | byte(addr>>16)&0xF,
		byte(addr >> 8),
		byte(addr),
		byte(len(data)),
	}
	body = append(body, data...)

	return parent.Header(), body, nil
}

// RemoteI2CReadRequest writes offset to the I2C device dev behind t and
// reads n bytes back.
func RemoteI2CReadRequest(t Target, dev, offset uint8, n int) (Header, []byte, error) {
	parent, port, err := t.Parent()
	if err != nil {
		return Header{}, nil, err
	}

	if n <= 0 || n > 0xFF {
		return Header{}, nil, fmt.Errorf("%w: remote I2C read of %d bytes",
			dp.ErrInvalidArgument, n)
	}

	body := []byte{
		byte(RemoteI2CRead),
		port<<4 | 1,
		dev & 0x7F,
		1,
		offset,
		0,
		dev & 0x7F,
		byte(n),
	}

	return parent.Header(), body, nil
}

// RemoteI2CWriteRequest writes data to the I2C device dev behind t.
func RemoteI2CWriteRequest(t Target, dev uint8, data []byte) (Header, []byte, error) {
	parent, port, err := t.Parent()
	if err != nil {
		return Header{}, nil, err
	}

	if len(data) == 0 || len(data) > 0xFF {
		return Header{}, nil, fmt.Errorf("%w: remote I2C write of %d bytes",
			dp.ErrInvalidArgument, len(data))
	}

	body := []byte{
		byte(RemoteI2CWrite),
		port << 4,
		dev & 0x7F,
		byte(len(data)),
	}
	body = append(body, data...)

	return parent.Header(), body, nil
}

// PortInfo describes one port in a LINK_ADDRESS reply. Input ports only
// carry the first five fields.
type PortInfo struct {
	Input          bool
	PeerDeviceType uint8
	PortNumber     uint8
	MsgCapable     bool
	Plugged        bool

	LegacyPlugged     bool
	DPCDRev           uint8
	GUID              GUID
	NumSdpStreams     uint8
	NumSdpStreamSinks uint8
}

// LinkAddressReply is the body of a LINK_ADDRESS reply.
type LinkAddressReply struct {
	GUID  GUID
	Ports []PortInfo
}

// Encode serializes the reply body.
func (r LinkAddressReply) Encode() []byte {
	body := []byte{byte(LinkAddress)}
	body = append(body, r.GUID[:]...)
	body = append(body, byte(len(r.Ports)))

	for _, p := range r.Ports {
		body = append(body,
			boolBit(p.Input)<<7|(p.PeerDeviceType&0x7)<<4|p.PortNumber&0xF)

		flags := boolBit(p.MsgCapable)<<7 | boolBit(p.Plugged)<<6
		if p.Input {
			body = append(body, flags)
			continue
		}

		body = append(body, flags|boolBit(p.LegacyPlugged)<<5, p.DPCDRev)
		body = append(body, p.GUID[:]...)
		body = append(body, p.NumSdpStreams<<4|p.NumSdpStreamSinks&0xF)
	}

	return body
}

// ParseLinkAddressReply parses the body of a LINK_ADDRESS reply.
func ParseLinkAddressReply(body []byte) (LinkAddressReply, error) {
	r := LinkAddressReply{}
	short := fmt.Errorf("%w: LINK_ADDRESS reply of %d bytes",
		dp.ErrProtocolFailure, len(body))

	if len(body) < 2+GUIDSize {
		return r, short
	}

	idx := 1
	copy(r.GUID[:], body[idx:idx+GUIDSize])
	idx += GUIDSize

	numPorts := int(body[idx])
	idx++

	for i := 0; i < numPorts; i++ {
		if idx+2 > len(body) {
			return r, short
		}

		p := PortInfo{
			Input:          body[idx]&0x80 != 0,
			PeerDeviceType: (body[idx] & 0x70) >> 4,
			PortNumber:     body[idx] & 0xF,
			MsgCapable:     body[idx+1]&0x80 != 0,
			Plugged:        body[idx+1]&0x40 != 0,
		}

		if p.Input {
			idx += 2
			r.Ports = append(r.Ports, p)

			continue
		}

		if idx+4+GUIDSize > len(body) {
			return r, short
		}

		p.LegacyPlugged = body[idx+1]&0x20 != 0
		p.DPCDRev = body[idx+2]
		copy(p.GUID[:], body[idx+3:idx+3+GUIDSize])
		p.NumSdpStreams = body[idx+3+GUIDSize] >> 4
		p.NumSdpStreamSinks = body[idx+3+GUIDSize] & 0xF
		idx += 4 + GUIDSize

		r.Ports = append(r.Ports, p)
	}

	return r, nil
}

// PathResources is the body of an ENUM_PATH_RESOURCES reply.
type PathResources struct {
	Port         uint8
	FullPBN      uint16
	AvailablePBN uint16
}

// Encode serializes the reply body.
func (r PathResources) Encode() []byte {
	return []byte{
		byte(EnumPathResources),
		r.Port << 4,
		byte(r.FullPBN >> 8), byte(r.FullPBN),
		byte(r.AvailablePBN >> 8), byte(r.AvailablePBN),
	}
}

// ParsePathResources parses the body of an ENUM_PATH_RESOURCES reply.
func ParsePathResources(body []byte) (PathResources, error) {
	if len(body) < 6 {
		return PathResources{}, fmt.Errorf(
			"%w: ENUM_PATH_RESOURCES reply of %d bytes",
			dp.ErrProtocolFailure, len(body))
	}

	return PathResources{
		Port:         body[1] >> 4,
		FullPBN:      uint16(body[2])<<8 | uint16(body[3]),
		AvailablePBN: uint16(body[4])<<8 | uint16(body[5]),
	}, nil
}

// ParseReadReply extracts the data of a REMOTE_DPCD_READ or REMOTE_I2C_READ
// reply. A reply carrying fewer than n bytes yields dp.ErrDataLost.
func ParseReadReply(body []byte, n int) ([]byte, error) {
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: read reply of %d bytes",
			dp.ErrProtocolFailure, len(body))
	}

	got := min(int(body[2]), len(body)-3)
	if got < n {
		return nil, fmt.Errorf("%w: %d of %d bytes in read reply",
			dp.ErrDataLost, got, n)
	}

	return body[3 : 3+n], nil
}

// MaxReadReplyData is the most data a read reply can carry and still fit in
// one message body.
const MaxReadReplyData = MaxBodySize - 3

// ReadReply builds the body of a successful read reply.
func ReadReply(id RequestID, port uint8, data []byte) []byte {
	body := []byte{byte(id), port & 0xF, byte(len(data))}
	return append(body, data...)
}

// NackReply builds a generic NACK for a request of the given kind.
func NackReply(id RequestID, guid GUID, reason uint8) []byte {
	body := []byte{byte(id) | ReplyNack}
	body = append(body, guid[:]...)

	return append(body, reason, 0x00)
}

// IsNack returns true if a reply body reports a NACK.
func IsNack(body []byte) bool {
	return len(body) > 0 && body[0]&ReplyNack != 0
}

// ReplyHeader returns the header of a reply sent by a device directly
// attached to the requester.
func ReplyHeader() Header {
	return Header{LinkCountTotal: 1}
}
