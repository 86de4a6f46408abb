// Package sideband implements the MST sideband message format: header and
// body codecs with their CRCs, fragmentation and reassembly, the message
// catalogue, and the transmitter and receiver messengers.
package sideband

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
)

const (
	// MaxFragmentSize is the size of the down-request and down-reply windows.
	MaxFragmentSize = 48

	// MaxBodySize is the largest body a reassembled message may carry.
	MaxBodySize = 256

	// MaxLinkCountTotal bounds the number of links a message may travel.
	MaxLinkCountTotal = 15
)

// Header is the header of one sideband fragment.
type Header struct {
	LinkCountTotal     uint8
	LinkCountRemaining uint8
	RelativeAddress    []uint8
	Broadcast          bool
	Path               bool

	// BodyLength counts the body bytes of the fragment plus the body CRC.
	BodyLength uint8

	StartOfTransaction bool
	EndOfTransaction   bool
	SequenceNum        uint8
	Crc                uint8
}

// Len returns the number of bytes the header occupies on the wire.
func (h Header) Len() int {
	return 3 + int(h.LinkCountTotal)/2
}

// Validate checks the fields that the wire format cannot represent.
func (h Header) Validate() error {
	if h.LinkCountTotal == 0 || h.LinkCountTotal > MaxLinkCountTotal {
		return fmt.Errorf("%w: link count total %d",
			dp.ErrInvalidArgument, h.LinkCountTotal)
	}

	if h.LinkCountRemaining > 0xF {
		return fmt.Errorf("%w: link count remaining %d",
			dp.ErrInvalidArgument, h.LinkCountRemaining)
	}

	if len(h.RelativeAddress) != int(h.LinkCountTotal)-1 {
		return fmt.Errorf("%w: %d relative address hops for link count %d",
			dp.ErrInvalidArgument, len(h.RelativeAddress), h.LinkCountTotal)
	}

	for _, port := range h.RelativeAddress {
		if port > 0xF {
			return fmt.Errorf("%w: port %d in relative address",
				dp.ErrInvalidArgument, port)
		}
	}

	if h.BodyLength > 0x3F {
		return fmt.Errorf("%w: body length %d",
			dp.ErrInvalidArgument, h.BodyLength)
	}

	if h.SequenceNum > 1 {
		return fmt.Errorf("%w: sequence number %d",
			dp.ErrInvalidArgument, h.SequenceNum)
	}

	return nil
}

// Encode serializes the header, computing a fresh CRC.
func (h Header) Encode() []byte {
	buf := make([]byte, 0, h.Len())
	buf = append(buf, h.LinkCountTotal<<4|h.LinkCountRemaining&0xF)

	hops := int(h.LinkCountTotal) - 1
	for i := 0; i < hops; i += 2 {
		b := h.RelativeAddress[i] << 4
		if i+1 < hops {
			b |= h.RelativeAddress[i+1] & 0xF
		}

		buf = append(buf, b)
	}

	buf = append(buf,
		boolBit(h.Broadcast)<<7|boolBit(h.Path)<<6|h.BodyLength&0x3F,
		boolBit(h.StartOfTransaction)<<7|boolBit(h.EndOfTransaction)<<6|
			(h.SequenceNum&0x1)<<4|HeaderCRC(h),
	)

	return buf
}

// DecodeHeader parses and CRC-checks the header at the start of raw.
func DecodeHeader(raw []byte) (Header, error) {
	h := Header{}

	if len(raw) < 3 {
		return h, fmt.Errorf("%w: %d byte header",
			dp.ErrProtocolFailure, len(raw))
	}

	h.LinkCountTotal = raw[0] >> 4
	h.LinkCountRemaining = raw[0] & 0xF

	if h.LinkCountTotal == 0 {
		return h, fmt.Errorf("%w: zero link count total",
			dp.ErrProtocolFailure)
	}

	if len(raw) < h.Len() {
		return h, fmt.Errorf("%w: %d byte header, want %d",
			dp.ErrProtocolFailure, len(raw), h.Len())
	}

	hops := int(h.LinkCountTotal) - 1
	if hops > 0 {
		h.RelativeAddress = make([]uint8, hops)
	}

	idx := 1
	for i := 0; i < hops; i += 2 {
		h.RelativeAddress[i] = raw[idx] >> 4
		if i+1 < hops {
			h.RelativeAddress[i+1] = raw[idx] & 0xF
		}

		idx++
	}

	h.Broadcast = raw[idx]&0x80 != 0
	h.Path = raw[idx]&0x40 != 0
	h.BodyLength = raw[idx] & 0x3F
	idx++

	h.StartOfTransaction = raw[idx]&0x80 != 0
	h.EndOfTransaction = raw[idx]&0x40 != 0
	h.SequenceNum = (raw[idx] & 0x10) >> 4
	h.Crc = raw[idx] & 0xF

	if want := HeaderCRC(h); want != h.Crc {
		return h, fmt.Errorf("%w: header CRC 0x%X, computed 0x%X",
			dp.ErrCrcMismatch, h.Crc, want)
	}

	return h, nil
}

// Message is one fragment: a header and the slice of the body it carries.
type Message struct {
	Header      Header
	Body        []byte
	FragmentNum int
}

// Len returns the number of bytes the fragment occupies on the wire.
func (m Message) Len() int {
	return m.Header.Len() + len(m.Body) + 1
}

// Encode serializes the fragment: header, body and body CRC. The header body
// length is derived from the body.
func (m Message) Encode() []byte {
	h := m.Header
	h.BodyLength = uint8(len(m.Body) + 1)

	buf := h.Encode()
	buf = append(buf, m.Body...)
	buf = append(buf, BodyCRC(m.Body))

	return buf
}

// Decode parses one fragment from raw, which may carry trailing padding. Both
// CRCs are verified.
func Decode(raw []byte) (Message, error) {
	h, err := DecodeHeader(raw)
	if err != nil {
		return Message{}, err
	}

	if h.BodyLength == 0 {
		return Message{}, fmt.Errorf("%w: empty fragment body",
			dp.ErrProtocolFailure)
	}

	start := h.Len()
	end := start + int(h.BodyLength)

	if end > len(raw) {
		return Message{}, fmt.Errorf("%w: fragment of %d bytes in %d",
			dp.ErrProtocolFailure, end, len(raw))
	}

	body := make([]byte, h.BodyLength-1)
	copy(body, raw[start:end-1])

	if want, got := BodyCRC(body), raw[end-1]; want != got {
		return Message{}, fmt.Errorf("%w: body CRC 0x%02X, computed 0x%02X",
			dp.ErrCrcMismatch, got, want)
	}

	return Message{Header: h, Body: body}, nil
}
