package simulation

import "github.com/sarchlab/dplink/regio"

// AuxRequest is one physical AUX request as seen by a peer.
type AuxRequest struct {
	Cmd     uint8
	Address uint32
	Length  int
	Data    []byte
}

// IsNative returns true for native AUX (DPCD) requests.
func (r AuxRequest) IsNative() bool {
	return r.Cmd&0x8 != 0
}

// IsRead returns true for read requests.
func (r AuxRequest) IsRead() bool {
	return r.Cmd&0x1 != 0
}

// IsMOT returns true for I2C requests that keep the I2C transaction open.
func (r AuxRequest) IsMOT() bool {
	return !r.IsNative() && r.Cmd&0x4 != 0
}

// AuxReply is the answer of a peer. A reply with NoReply set makes the
// controller report a reply timeout.
type AuxReply struct {
	Code    uint32
	Data    []byte
	NoReply bool
}

// AuxPeer answers AUX requests.
type AuxPeer interface {
	HandleAux(req AuxRequest) AuxReply
}

// ActReceiver is implemented by peers that observe the ACT sequence sent on
// the main link.
type ActReceiver interface {
	ReceiveACT()
}

// TxController is the register file of a DisplayPort TX core. Writing the
// AUX command register runs the request against the attached peer at once.
type TxController struct {
	peer AuxPeer
	hpd  bool

	regs        map[uint32]uint32
	writeFifo   []byte
	replyData   []byte
	replyCount  uint32
	replyCode   uint32
	replyStatus uint32
	sigState    uint32

	busyPolls int
	requests  int

	// PhyNotReady keeps the PHY status register at zero.
	PhyNotReady bool
}

// NewTxController creates a controller attached to peer. Hot-plug detect is
// asserted when peer is not nil.
func NewTxController(peer AuxPeer) *TxController {
	return &TxController{
		peer: peer,
		hpd:  peer != nil,
		regs: make(map[uint32]uint32),
	}
}

// SetHPD sets the hot-plug-detect state.
func (c *TxController) SetHPD(connected bool) {
	c.hpd = connected
}

// BusyFor makes the next n reads of the reply status register report a
// request in progress.
func (c *TxController) BusyFor(n int) {
	c.busyPolls = n
}

// Requests returns the number of physical AUX requests issued so far.
func (c *TxController) Requests() int {
	return c.requests
}

// Reg returns the last value written to a plain register.
func (c *TxController) Reg(offset uint32) uint32 {
	return c.regs[offset]
}

// ReadReg implements regio.Bus.
func (c *TxController) ReadReg(offset uint32) uint32 {
	switch offset {
	case regio.TxInterruptSigState:
		state := c.sigState
		if c.hpd {
			state |= regio.SigStateHpd
		}

		return state
	case regio.TxReplyStatus:
		if c.busyPolls > 0 {
			c.busyPolls--
			return regio.RequestInProgress
		}

		return c.replyStatus
	case regio.TxPhyStatus:
		if c.PhyNotReady {
			return 0
		}

		return regio.PhyLanesReady(4) | regio.PhyLanesReady(2)
	case regio.TxAuxReplyCode:
		return c.replyCode
	case regio.TxReplyDataCount:
		return c.replyCount
	case regio.TxAuxReplyData:
		if len(c.replyData) == 0 {
			return 0
		}

		b := c.replyData[0]
		c.replyData = c.replyData[1:]

		return uint32(b)
	default:
		return c.regs[offset]
	}
}

// WriteReg implements regio.Bus.
func (c *TxController) WriteReg(offset uint32, value uint32) {
	switch offset {
	case regio.TxAuxWriteFifo:
		c.writeFifo = append(c.writeFifo, byte(value))
	case regio.TxAuxCmd:
		c.regs[offset] = value
		c.execute(value)
	case regio.TxMstConfig:
		c.regs[offset] = value
		if value == regio.MstConfigActTrigger {
			if r, ok := c.peer.(ActReceiver); ok {
				r.ReceiveACT()
			}
		}
	default:
		c.regs[offset] = value
	}
}

func (c *TxController) execute(word uint32) {
	req := AuxRequest{
		Cmd:     uint8(word>>regio.AuxCmdShift) & 0xF,
		Address: c.regs[regio.TxAuxAddress],
		Length:  int(word&regio.AuxCmdNumBytesMask) + 1,
	}

	if word&regio.AuxCmdAddressOnly != 0 {
		req.Length = 0
	}

	if !req.IsRead() {
		req.Data = c.writeFifo
	}

	c.writeFifo = nil
	c.requests++

	reply := AuxReply{NoReply: true}
	if c.peer != nil && c.hpd {
		reply = c.peer.HandleAux(req)
	}

	c.replyData = nil
	c.replyCount = 0
	c.sigState &^= regio.SigStateReplyTimeout

	if reply.NoReply {
		c.sigState |= regio.SigStateReplyTimeout
		c.replyStatus = 0

		return
	}

	c.replyStatus = regio.ReplyStatusReceived
	c.replyCode = reply.Code
	c.replyData = append([]byte(nil), reply.Data...)
	c.replyCount = uint32(len(reply.Data))
}
