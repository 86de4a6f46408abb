package simulation

import (
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
)

// RxController is the register file of a DisplayPort RX core as seen by the
// sideband responder. The upstream device is modelled by the test or tool
// driving it: it injects down requests and collects down replies.
type RxController struct {
	regs    map[uint32]uint32
	replies [][]byte
	hold    bool
}

// NewRxController creates a controller whose upstream device consumes every
// down reply at once.
func NewRxController() *RxController {
	return &RxController{regs: make(map[uint32]uint32)}
}

// HoldReplies stops the upstream device from consuming down replies.
func (c *RxController) HoldReplies(hold bool) {
	c.hold = hold
}

// InjectDownRequest places one request fragment in the down-request buffer
// and raises the down-request interrupt.
func (c *RxController) InjectDownRequest(frag []byte) {
	for i := 0; i < sideband.MaxFragmentSize; i++ {
		v := uint32(0)
		if i < len(frag) {
			v = uint32(frag[i])
		}

		c.regs[regio.RxDownReq+uint32(4*i)] = v
	}

	c.RaiseInterrupt(regio.RxCauseDownRequest)
}

// SetMstAlloc loads the MST allocation register as written by an upstream
// ALLOCATE_PAYLOAD and raises the payload allocation interrupt.
func (c *RxController) SetMstAlloc(vcID, start, count uint8) {
	c.regs[regio.RxMstAlloc] = uint32(vcID)&0x3F |
		(uint32(start)&0x3F)<<regio.RxMstAllocStartTsShift |
		(uint32(count)&0x3F)<<regio.RxMstAllocCountTsShift

	c.RaiseInterrupt(regio.RxCausePayloadAlloc)
}

// RaiseInterrupt sets bits of the interrupt cause register.
func (c *RxController) RaiseInterrupt(cause uint32) {
	c.regs[regio.RxInterruptCause] |= cause
}

// Replies returns the down-reply fragments consumed so far.
func (c *RxController) Replies() [][]byte {
	return c.replies
}

// Reg returns the current value of a register without side effects.
func (c *RxController) Reg(offset uint32) uint32 {
	return c.regs[offset]
}

// ReadReg implements regio.Bus. The interrupt cause register clears on read.
func (c *RxController) ReadReg(offset uint32) uint32 {
	v := c.regs[offset]

	if offset == regio.RxInterruptCause {
		c.regs[offset] = 0
	}

	return v
}

// WriteReg implements regio.Bus.
func (c *RxController) WriteReg(offset uint32, value uint32) {
	c.regs[offset] = value

	if offset == regio.RxDeviceServiceIrq &&
		value&regio.RxIrqNewDownReply != 0 && !c.hold {
		c.consumeReply()
	}
}

func (c *RxController) consumeReply() {
	frag := make([]byte, sideband.MaxFragmentSize)
	for i := range frag {
		frag[i] = byte(c.regs[regio.RxDownRep+uint32(4*i)])
	}

	c.replies = append(c.replies, frag)
	c.regs[regio.RxDeviceServiceIrq] &^= regio.RxIrqNewDownReply
}
