package topology

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
)

// Builder can build topology managers.
type Builder struct {
	channel         AuxChannel
	messenger       Messenger
	bus             regio.Bus
	timer           regio.Timer
	sink            dp.EventSink
	statusPollLimit int
}

// MakeBuilder returns a Builder with the default status poll limit.
func MakeBuilder() Builder {
	return Builder{
		statusPollLimit: DefaultStatusPollLimit,
	}
}

// WithAuxChannel sets the access to the directly attached device.
func (b Builder) WithAuxChannel(c AuxChannel) Builder {
	b.channel = c
	return b
}

// WithMessenger sets the sideband messenger.
func (b Builder) WithMessenger(m Messenger) Builder {
	b.messenger = m
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

// WithEventSink sets the sink notified of discovery and payload changes.
func (b Builder) WithEventSink(s dp.EventSink) Builder {
	b.sink = s
	return b
}

// WithStatusPollLimit sets how many times the payload table status is
// polled, one millisecond apart, before giving up.
func (b Builder) WithStatusPollLimit(n int) Builder {
	b.statusPollLimit = n
	return b
}

// Build creates the manager.
func (b Builder) Build(name string) (*Manager, error) {
	if b.channel == nil || b.messenger == nil || b.bus == nil || b.timer == nil {
		return nil, fmt.Errorf(
			"%w: topology manager %s needs an AUX channel, a messenger, "+
				"a bus and a timer",
			dp.ErrInvalidArgument, name)
	}

	if b.statusPollLimit <= 0 {
		return nil, fmt.Errorf("%w: status poll limit %d",
			dp.ErrInvalidArgument, b.statusPollLimit)
	}

	m := &Manager{
		HookableBase:    dp.NewHookableBase(),
		name:            name,
		channel:         b.channel,
		messenger:       b.messenger,
		bus:             b.bus,
		timer:           b.timer,
		sink:            b.sink,
		statusPollLimit: b.statusPollLimit,
		nodes:           NewArena(),
	}

	if m.sink == nil {
		m.sink = dp.NopEventSink{}
	}

	return m, nil
}

// ResponderBuilder can build receiver-side responders.
type ResponderBuilder struct {
	messenger RequestMessenger
	bus       regio.Bus
	sink      dp.EventSink
	guid      sideband.GUID
}

// MakeResponderBuilder returns a ResponderBuilder.
func MakeResponderBuilder() ResponderBuilder {
	return ResponderBuilder{}
}

// WithMessenger sets the receiver messenger.
func (b ResponderBuilder) WithMessenger(m RequestMessenger) ResponderBuilder {
	b.messenger = m
	return b
}

// WithBus sets the register bus of the RX core.
func (b ResponderBuilder) WithBus(bus regio.Bus) ResponderBuilder {
	b.bus = bus
	return b
}

// WithEventSink sets the sink notified of handled requests and interrupts.
func (b ResponderBuilder) WithEventSink(s dp.EventSink) ResponderBuilder {
	b.sink = s
	return b
}

// WithGUID sets the GUID reported in LINK_ADDRESS replies and NACKs.
func (b ResponderBuilder) WithGUID(g sideband.GUID) ResponderBuilder {
	b.guid = g
	return b
}

// Build creates the responder.
func (b ResponderBuilder) Build(name string) (*Responder, error) {
	if b.messenger == nil || b.bus == nil {
		return nil, fmt.Errorf(
			"%w: responder %s needs a messenger and a bus",
			dp.ErrInvalidArgument, name)
	}

	r := &Responder{
		HookableBase: dp.NewHookableBase(),
		name:         name,
		messenger:    b.messenger,
		bus:          b.bus,
		sink:         b.sink,
		guid:         b.guid,
	}

	if r.sink == nil {
		r.sink = dp.NopEventSink{}
	}

	return r, nil
}
