package simulation

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/dplink/dp"
)

// Builder can be used to build a simulation.
type Builder struct {
	sinkConfig SinkConfig
	branch     *Branch
	withRx     bool
	unplugged  bool
}

// MakeBuilder creates a new builder with a default DP1.2 sink.
func MakeBuilder() Builder {
	return Builder{
		sinkConfig: DefaultSinkConfig(),
	}
}

// WithSinkConfig sets the capabilities of the directly attached sink.
func (b Builder) WithSinkConfig(cfg SinkConfig) Builder {
	b.sinkConfig = cfg
	return b
}

// WithBranch makes the attached sink the root of an MST tree.
func (b Builder) WithBranch(root *Branch) Builder {
	b.branch = root
	return b
}

// WithRxController adds the register file of an RX core to the simulation.
func (b Builder) WithRxController() Builder {
	b.withRx = true
	return b
}

// WithUnplugged starts the simulation with hot-plug detect deasserted.
func (b Builder) WithUnplugged() Builder {
	b.unplugged = true
	return b
}

func (b Builder) parametersMustBeValid() error {
	if !dp.ValidLaneCount(b.sinkConfig.MaxLaneCount) {
		return fmt.Errorf("%w: sink lane count %d",
			dp.ErrInvalidArgument, b.sinkConfig.MaxLaneCount)
	}

	if !b.sinkConfig.MaxLinkRate.Valid() {
		return fmt.Errorf("%w: sink link rate %#x",
			dp.ErrInvalidArgument, uint8(b.sinkConfig.MaxLinkRate))
	}

	return nil
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	s := &Simulation{
		id:            xid.New().String(),
		clock:         NewClock(),
		sink:          NewSink(b.sinkConfig),
		compNameIndex: make(map[string]int),
	}

	if b.branch != nil {
		s.sink.AttachBranch(b.branch)
	}

	s.tx = NewTxController(s.sink)
	if b.unplugged {
		s.tx.SetHPD(false)
	}

	if b.withRx {
		s.rx = NewRxController()
	}

	return s, nil
}
