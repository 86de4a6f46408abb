package sideband

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
)

// Request is a reassembled down request.
type Request struct {
	Header Header
	Body   []byte
}

// ID returns the request kind.
func (r Request) ID() RequestID {
	if len(r.Body) == 0 {
		return 0
	}

	return RequestID(r.Body[0] & 0x7F)
}

// RxMessenger receives down requests from the RX core's down-request buffer
// and answers through its down-reply buffer.
type RxMessenger struct {
	*dp.HookableBase

	name           string
	bus            regio.Bus
	timer          regio.Timer
	replyPollLimit int
	reassembler    Reassembler
}

// Name returns the name of the messenger.
func (m *RxMessenger) Name() string {
	return m.name
}

// ReceiveRequest reads the fragment in the down-request buffer. It returns
// true together with the request once the last fragment has arrived.
func (m *RxMessenger) ReceiveRequest() (Request, bool, error) {
	raw := make([]byte, MaxFragmentSize)
	for i := range raw {
		raw[i] = byte(m.bus.ReadReg(regio.RxDownReq + uint32(4*i)))
	}

	frag, err := Decode(raw)
	if err != nil {
		m.reassembler.Reset()
		return Request{}, false, err
	}

	frag.FragmentNum = m.reassembler.Fragments()
	if frag.Header.StartOfTransaction {
		frag.FragmentNum = 0
	}

	m.InvokeHook(dp.HookCtx{
		Domain: m,
		Pos:    dp.HookPosSidebandReceive,
		Item:   frag,
	})

	done, err := m.reassembler.Add(frag)
	if err != nil {
		m.reassembler.Reset()
		return Request{}, false, err
	}

	if !done {
		return Request{}, false, nil
	}

	req := Request{
		Header: m.reassembler.Header(),
		Body:   m.reassembler.Body(),
	}
	m.reassembler.Reset()

	return req, true, nil
}

// SendReply fragments the reply and hands each fragment to the upstream
// device, waiting for it to be consumed before writing the next one.
func (m *RxMessenger) SendReply(h Header, body []byte) error {
	frags, err := Fragment(h, body)
	if err != nil {
		return err
	}

	for _, frag := range frags {
		m.InvokeHook(dp.HookCtx{
			Domain: m,
			Pos:    dp.HookPosSidebandSend,
			Item:   frag,
		})

		if err := m.writeReply(frag.Encode()); err != nil {
			return err
		}
	}

	return nil
}

func (m *RxMessenger) writeReply(raw []byte) error {
	for i, b := range raw {
		m.bus.WriteReg(regio.RxDownRep+uint32(4*i), uint32(b))
	}

	m.bus.WriteReg(regio.RxDeviceServiceIrq, regio.RxIrqNewDownReply)
	m.bus.WriteReg(regio.RxHpdInterrupt, regio.RxHpdInterruptAssert)

	for i := 0; i < m.replyPollLimit; i++ {
		if m.bus.ReadReg(regio.RxDeviceServiceIrq)&regio.RxIrqNewDownReply == 0 {
			return nil
		}

		m.timer.DelayUs(replyPollDelayUs)
	}

	return fmt.Errorf("%w: down reply not consumed after %d polls",
		dp.ErrTimeout, m.replyPollLimit)
}
