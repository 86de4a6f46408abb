package dplink

import (
	"fmt"

	"github.com/sarchlab/dplink/auxch"
	"github.com/sarchlab/dplink/config"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/idgen"
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/topology"
	"github.com/sarchlab/dplink/training"
)

// Builder can build transmitter and receiver sessions.
type Builder struct {
	bus         regio.Bus
	timer       regio.Timer
	sink        dp.EventSink
	ids         idgen.Generator
	protocol    dp.Protocol
	maxLinkRate dp.LinkRate
	maxLanes    int
	adaptive    bool
	guid        sideband.GUID
}

// MakeBuilder returns a Builder for DP1.2 sessions with four lanes and
// adaptive training.
func MakeBuilder() Builder {
	return Builder{
		protocol: dp.ProtocolDP12,
		maxLanes: 4,
		adaptive: true,
	}
}

// WithBus sets the register file of the controller core.
func (b Builder) WithBus(bus regio.Bus) Builder {
	b.bus = bus
	return b
}

// WithTimer sets the delay primitive.
func (b Builder) WithTimer(t regio.Timer) Builder {
	b.timer = t
	return b
}

// WithEventSink sets the receiver of session events.
func (b Builder) WithEventSink(s dp.EventSink) Builder {
	b.sink = s
	return b
}

// WithIDGenerator sets how AUX transaction IDs are generated.
func (b Builder) WithIDGenerator(ids idgen.Generator) Builder {
	b.ids = ids
	return b
}

// WithProtocol sets the protocol generation of a transmitter.
func (b Builder) WithProtocol(p dp.Protocol) Builder {
	b.protocol = p
	return b
}

// WithMaxLinkRate caps the link rate of a transmitter.
func (b Builder) WithMaxLinkRate(r dp.LinkRate) Builder {
	b.maxLinkRate = r
	return b
}

// WithMaxLanes caps the lane count of a transmitter.
func (b Builder) WithMaxLanes(n int) Builder {
	b.maxLanes = n
	return b
}

// WithAdaptive enables or disables rate and lane fallback during training.
func (b Builder) WithAdaptive(adaptive bool) Builder {
	b.adaptive = adaptive
	return b
}

// WithGUID sets the GUID a receiver reports.
func (b Builder) WithGUID(g sideband.GUID) Builder {
	b.guid = g
	return b
}

// WithConfig applies the link settings of c.
func (b Builder) WithConfig(c config.Config) Builder {
	b.protocol = c.Protocol
	b.maxLinkRate = c.MaxLinkRate
	b.maxLanes = c.MaxLanes
	b.adaptive = c.Adaptive

	return b
}

func (b Builder) eventSink() dp.EventSink {
	if b.sink == nil {
		return dp.NopEventSink{}
	}

	return b.sink
}

// BuildTx builds a transmitter session.
func (b Builder) BuildTx(name string) (*TxSession, error) {
	if b.bus == nil || b.timer == nil {
		return nil, fmt.Errorf("%w: session %s needs a bus and a timer",
			dp.ErrInvalidArgument, name)
	}

	s := &TxSession{name: name, sink: b.eventSink()}

	var err error

	ab := auxch.MakeBuilder().WithBus(b.bus).WithTimer(b.timer).WithEventSink(s.sink)
	if b.ids != nil {
		ab = ab.WithIDGenerator(b.ids)
	}

	s.aux, err = ab.Build(name + ".Aux")
	if err != nil {
		return nil, err
	}

	s.trainer, err = training.MakeBuilder().
		WithAuxChannel(s.aux).
		WithBus(b.bus).
		WithTimer(b.timer).
		WithEventSink(s.sink).
		WithProtocol(b.protocol).
		WithMaxLinkRate(b.maxLinkRate).
		WithMaxLaneCount(b.maxLanes).
		WithAdaptive(b.adaptive).
		Build(name + ".Trainer")
	if err != nil {
		return nil, err
	}

	s.messenger, err = sideband.MakeTxBuilder().
		WithAuxChannel(s.aux).
		WithTimer(b.timer).
		Build(name + ".Sideband")
	if err != nil {
		return nil, err
	}

	s.topology, err = topology.MakeBuilder().
		WithAuxChannel(s.aux).
		WithMessenger(s.messenger).
		WithBus(b.bus).
		WithTimer(b.timer).
		WithEventSink(s.sink).
		Build(name + ".Topology")
	if err != nil {
		return nil, err
	}

	return s, nil
}

// BuildRx builds a receiver session.
func (b Builder) BuildRx(name string) (*RxSession, error) {
	if b.bus == nil || b.timer == nil {
		return nil, fmt.Errorf("%w: session %s needs a bus and a timer",
			dp.ErrInvalidArgument, name)
	}

	s := &RxSession{name: name}

	var err error

	s.messenger, err = sideband.MakeRxBuilder().
		WithBus(b.bus).
		WithTimer(b.timer).
		Build(name + ".Sideband")
	if err != nil {
		return nil, err
	}

	s.responder, err = topology.MakeResponderBuilder().
		WithMessenger(s.messenger).
		WithBus(b.bus).
		WithEventSink(b.eventSink()).
		WithGUID(b.guid).
		Build(name + ".Responder")
	if err != nil {
		return nil, err
	}

	return s, nil
}
