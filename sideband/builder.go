package sideband

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
)

// TxBuilder can build transmitter messengers.
type TxBuilder struct {
	channel        AuxChannel
	timer          regio.Timer
	messageDelayUs uint32
	replyPollLimit int
}

// MakeTxBuilder returns a TxBuilder with the default reply timeout.
func MakeTxBuilder() TxBuilder {
	return TxBuilder{
		replyPollLimit: 1000,
	}
}

// WithAuxChannel sets the DPCD access used to reach the down-request and
// down-reply windows.
func (b TxBuilder) WithAuxChannel(c AuxChannel) TxBuilder {
	b.channel = c
	return b
}

// WithTimer sets the delay primitive.
func (b TxBuilder) WithTimer(t regio.Timer) TxBuilder {
	b.timer = t
	return b
}

// WithMessageDelay sets the delay before each fragment is sent and before
// each reply fragment is awaited.
func (b TxBuilder) WithMessageDelay(us uint32) TxBuilder {
	b.messageDelayUs = us
	return b
}

// WithReplyPollLimit sets how many 1 ms polls a reply fragment may take.
func (b TxBuilder) WithReplyPollLimit(n int) TxBuilder {
	b.replyPollLimit = n
	return b
}

// Build creates the messenger.
func (b TxBuilder) Build(name string) (*TxMessenger, error) {
	if b.channel == nil || b.timer == nil {
		return nil, fmt.Errorf("%w: sideband messenger %s needs an AUX channel and a timer",
			dp.ErrInvalidArgument, name)
	}

	if b.replyPollLimit <= 0 {
		return nil, fmt.Errorf("%w: reply poll limit %d",
			dp.ErrInvalidArgument, b.replyPollLimit)
	}

	return &TxMessenger{
		HookableBase:   dp.NewHookableBase(),
		name:           name,
		channel:        b.channel,
		timer:          b.timer,
		messageDelayUs: b.messageDelayUs,
		replyPollLimit: b.replyPollLimit,
	}, nil
}

// RxBuilder can build receiver messengers.
type RxBuilder struct {
	bus            regio.Bus
	timer          regio.Timer
	replyPollLimit int
}

// MakeRxBuilder returns an RxBuilder with the default reply timeout.
func MakeRxBuilder() RxBuilder {
	return RxBuilder{
		replyPollLimit: 5000,
	}
}

// WithBus sets the register bus of the RX core.
func (b RxBuilder) WithBus(bus regio.Bus) RxBuilder {
	b.bus = bus
	return b
}

// WithTimer sets the delay primitive.
func (b RxBuilder) WithTimer(t regio.Timer) RxBuilder {
	b.timer = t
	return b
}

// WithReplyPollLimit sets how many 1 ms polls the upstream device may take
// to consume a reply fragment.
func (b RxBuilder) WithReplyPollLimit(n int) RxBuilder {
	b.replyPollLimit = n
	return b
}

// Build creates the messenger.
func (b RxBuilder) Build(name string) (*RxMessenger, error) {
	if b.bus == nil || b.timer == nil {
		return nil, fmt.Errorf("%w: sideband messenger %s needs a bus and a timer",
			dp.ErrInvalidArgument, name)
	}

	if b.replyPollLimit <= 0 {
		return nil, fmt.Errorf("%w: reply poll limit %d",
			dp.ErrInvalidArgument, b.replyPollLimit)
	}

	return &RxMessenger{
		HookableBase:   dp.NewHookableBase(),
		name:           name,
		bus:            b.bus,
		timer:          b.timer,
		replyPollLimit: b.replyPollLimit,
	}, nil
}
