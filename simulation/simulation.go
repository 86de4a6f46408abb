package simulation

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
)

// A Simulation is a simulated DisplayPort bench. A TX controller drives a
// directly attached sink, which may be the root of an MST tree, and an
// optional RX controller stands in for the receive side. All parts share
// one virtual clock.
type Simulation struct {
	id    string
	clock *Clock
	tx    *TxController
	sink  *Sink
	rx    *RxController

	components    []dp.Named
	compNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Clock returns the virtual clock.
func (s *Simulation) Clock() *Clock {
	return s.clock
}

// TxController returns the TX core register file.
func (s *Simulation) TxController() *TxController {
	return s.tx
}

// Sink returns the directly attached sink.
func (s *Simulation) Sink() *Sink {
	return s.sink
}

// RxController returns the RX core register file, or nil when the
// simulation was built without one.
func (s *Simulation) RxController() *RxController {
	return s.rx
}

// RegisterComponent registers a component with the simulation. Names must be
// unique.
func (s *Simulation) RegisterComponent(c dp.Named) error {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		return fmt.Errorf("%w: component %s already registered",
			dp.ErrInvalidArgument, compName)
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	return nil
}

// Components returns the registered components in registration order.
func (s *Simulation) Components() []dp.Named {
	return s.components
}

// GetComponentByName returns the component with the given name.
func (s *Simulation) GetComponentByName(name string) (dp.Named, bool) {
	i, found := s.compNameIndex[name]
	if !found {
		return nil, false
	}

	return s.components[i], true
}
