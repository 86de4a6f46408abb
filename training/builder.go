package training

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
)

// Builder can build link trainers.
type Builder struct {
	channel     AuxChannel
	bus         regio.Bus
	timer       regio.Timer
	sink        dp.EventSink
	protocol    dp.Protocol
	adaptive    bool
	maxLinkRate dp.LinkRate
	maxLanes    int
}

// MakeBuilder returns a Builder for a DP1.2 transmitter with four lanes and
// adaptive training enabled.
func MakeBuilder() Builder {
	return Builder{
		protocol: dp.ProtocolDP12,
		adaptive: true,
		maxLanes: 4,
	}
}

// WithAuxChannel sets the DPCD access used to reach the receiver.
func (b Builder) WithAuxChannel(c AuxChannel) Builder {
	b.channel = c
	return b
}

// WithBus sets the register bus of the TX core.
func (b Builder) WithBus(bus regio.Bus) Builder {
	b.bus = bus
	return b
}

// WithTimer sets the delay primitive.
func (b Builder) WithTimer(t regio.Timer) Builder {
	b.timer = t
	return b
}

// WithEventSink sets the sink notified when training ends.
func (b Builder) WithEventSink(s dp.EventSink) Builder {
	b.sink = s
	return b
}

// WithProtocol sets the protocol generation of the TX core.
func (b Builder) WithProtocol(p dp.Protocol) Builder {
	b.protocol = p
	return b
}

// WithAdaptive sets whether a failed attempt may lower the link rate or the
// lane count.
func (b Builder) WithAdaptive(adaptive bool) Builder {
	b.adaptive = adaptive
	return b
}

// WithMaxLinkRate caps the link rate. By default the highest rate of the
// protocol generation is used.
func (b Builder) WithMaxLinkRate(r dp.LinkRate) Builder {
	b.maxLinkRate = r
	return b
}

// WithMaxLaneCount caps the lane count.
func (b Builder) WithMaxLaneCount(n int) Builder {
	b.maxLanes = n
	return b
}

// Build creates the trainer.
func (b Builder) Build(name string) (*Trainer, error) {
	if b.channel == nil || b.bus == nil || b.timer == nil {
		return nil, fmt.Errorf(
			"%w: trainer %s needs an AUX channel, a bus and a timer",
			dp.ErrInvalidArgument, name)
	}

	maxRate := b.maxLinkRate
	if maxRate == 0 {
		maxRate = b.protocol.MaxLinkRate()
	}

	if !maxRate.Valid() || maxRate > b.protocol.MaxLinkRate() {
		return nil, fmt.Errorf("%w: link rate %s not supported by %s",
			dp.ErrInvalidArgument, maxRate, b.protocol)
	}

	if !dp.ValidLaneCount(b.maxLanes) {
		return nil, fmt.Errorf("%w: lane count %d",
			dp.ErrInvalidArgument, b.maxLanes)
	}

	t := &Trainer{
		HookableBase: dp.NewHookableBase(),
		name:         name,
		channel:      b.channel,
		bus:          b.bus,
		timer:        b.timer,
		sink:         b.sink,
		protocol:     b.protocol,
		adaptive:     b.adaptive,
		maxLinkRate:  maxRate,
		maxLanes:     b.maxLanes,
	}

	if t.sink == nil {
		t.sink = dp.NopEventSink{}
	}

	return t, nil
}
