package sideband

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
)

//go:generate mockgen -destination "mock_sideband_test.go" -package $GOPACKAGE -write_package_comment=false github.com/sarchlab/dplink/sideband AuxChannel

// AuxChannel is the DPCD access used by the transmitter messenger.
type AuxChannel interface {
	Read(addr uint32, buf []byte) error
	Write(addr uint32, data []byte) error
}

const replyPollDelayUs = 1000

// TxMessenger sends down requests through the DPCD down-request window and
// collects down replies from the down-reply window.
type TxMessenger struct {
	*dp.HookableBase

	name           string
	channel        AuxChannel
	timer          regio.Timer
	messageDelayUs uint32
	replyPollLimit int
}

// Name returns the name of the messenger.
func (m *TxMessenger) Name() string {
	return m.name
}

// Send fragments the request and writes each fragment to the down-request
// window. A stale reply-ready indicator is cleared before every fragment.
func (m *TxMessenger) Send(h Header, body []byte) error {
	frags, err := Fragment(h, body)
	if err != nil {
		return err
	}

	for _, frag := range frags {
		m.timer.DelayUs(m.messageDelayUs)

		err := m.channel.Write(dp.DpcdEsi0, []byte{dp.DownRepMsgRdy})
		if err != nil {
			return err
		}

		m.InvokeHook(dp.HookCtx{
			Domain: m,
			Pos:    dp.HookPosSidebandSend,
			Item:   frag,
		})

		if err := m.channel.Write(dp.DpcdDownReq, frag.Encode()); err != nil {
			return err
		}
	}

	return nil
}

// ReceiveReply collects reply fragments until the end of the transaction
// and returns the reassembled body. A NACK reply is returned together with
// dp.ErrNacked.
func (m *TxMessenger) ReceiveReply() ([]byte, error) {
	r := Reassembler{}

	for !r.Done() {
		m.timer.DelayUs(m.messageDelayUs)

		if err := m.waitReply(); err != nil {
			return nil, err
		}

		raw := make([]byte, MaxFragmentSize)
		if err := m.channel.Read(dp.DpcdDownRep, raw); err != nil {
			return nil, err
		}

		frag, err := Decode(raw)
		if err != nil {
			return nil, err
		}

		frag.FragmentNum = r.Fragments()

		m.InvokeHook(dp.HookCtx{
			Domain: m,
			Pos:    dp.HookPosSidebandReceive,
			Item:   frag,
		})

		if _, err := r.Add(frag); err != nil {
			return nil, err
		}

		err = m.channel.Write(dp.DpcdEsi0, []byte{dp.DownRepMsgRdy})
		if err != nil {
			return nil, err
		}
	}

	body := r.Body()
	if IsNack(body) {
		return body, fmt.Errorf("%w: %s", dp.ErrNacked,
			RequestID(body[0]&^ReplyNack))
	}

	return body, nil
}

// Transact sends a request and waits for its reply.
func (m *TxMessenger) Transact(h Header, body []byte) ([]byte, error) {
	if err := m.Send(h, body); err != nil {
		return nil, err
	}

	return m.ReceiveReply()
}

func (m *TxMessenger) waitReply() error {
	esi := []byte{0}

	for i := 0; i < m.replyPollLimit; i++ {
		if err := m.channel.Read(dp.DpcdEsi0, esi); err != nil {
			return err
		}

		if esi[0]&dp.DownRepMsgRdy != 0 {
			return nil
		}

		m.timer.DelayUs(replyPollDelayUs)
	}

	return fmt.Errorf("%w: no down reply after %d polls",
		dp.ErrTimeout, m.replyPollLimit)
}
