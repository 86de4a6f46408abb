package auxch

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/idgen"
	"github.com/sarchlab/dplink/regio"
)

// Builder can build AUX transports.
type Builder struct {
	bus          regio.Bus
	timer        regio.Timer
	ids          idgen.Generator
	sink         dp.EventSink
	deferLimit   int
	timeoutLimit int
	retryDelayUs uint32
}

// MakeBuilder returns a Builder with the retry budgets of the DisplayPort
// compliance test specification.
func MakeBuilder() Builder {
	return Builder{
		deferLimit:   50,
		timeoutLimit: 50,
		retryDelayUs: 3200,
	}
}

// WithBus sets the register bus of the TX core.
func (b Builder) WithBus(bus regio.Bus) Builder {
	b.bus = bus
	return b
}

// WithTimer sets the delay primitive.
func (b Builder) WithTimer(timer regio.Timer) Builder {
	b.timer = timer
	return b
}

// WithIDGenerator sets the generator used to name transactions.
func (b Builder) WithIDGenerator(ids idgen.Generator) Builder {
	b.ids = ids
	return b
}

// WithEventSink sets the sink notified about hot-plug changes.
func (b Builder) WithEventSink(sink dp.EventSink) Builder {
	b.sink = sink
	return b
}

// WithDeferLimit sets the number of deferrals tolerated per request.
func (b Builder) WithDeferLimit(n int) Builder {
	b.deferLimit = n
	return b
}

// WithTimeoutLimit sets the number of timeouts tolerated per request.
func (b Builder) WithTimeoutLimit(n int) Builder {
	b.timeoutLimit = n
	return b
}

// WithRetryDelay sets the delay between two attempts of the same request.
func (b Builder) WithRetryDelay(us uint32) Builder {
	b.retryDelayUs = us
	return b
}

// Build creates the transport.
func (b Builder) Build(name string) (*Transport, error) {
	if b.bus == nil {
		return nil, fmt.Errorf("%w: aux transport %s has no bus",
			dp.ErrInvalidArgument, name)
	}

	if b.timer == nil {
		return nil, fmt.Errorf("%w: aux transport %s has no timer",
			dp.ErrInvalidArgument, name)
	}

	if b.deferLimit <= 0 || b.timeoutLimit <= 0 {
		return nil, fmt.Errorf("%w: aux retry limits must be positive",
			dp.ErrInvalidArgument)
	}

	t := &Transport{
		HookableBase: dp.NewHookableBase(),
		name:         name,
		bus:          b.bus,
		timer:        b.timer,
		ids:          b.ids,
		sink:         b.sink,
		deferLimit:   b.deferLimit,
		timeoutLimit: b.timeoutLimit,
		retryDelayUs: b.retryDelayUs,
	}

	if t.ids == nil {
		t.ids = idgen.NewSequential()
	}

	if t.sink == nil {
		t.sink = dp.NopEventSink{}
	}

	return t, nil
}
