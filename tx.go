package dplink

import (
	"errors"

	"github.com/sarchlab/dplink/auxch"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/topology"
	"github.com/sarchlab/dplink/training"
)

// TxSession drives one DisplayPort transmitter.
type TxSession struct {
	name      string
	sink      dp.EventSink
	aux       *auxch.Transport
	trainer   *training.Trainer
	messenger *sideband.TxMessenger
	topology  *topology.Manager
}

func (*TxSession) role() {}

// Name returns the name of the session.
func (s *TxSession) Name() string {
	return s.name
}

// Aux returns the AUX transport.
func (s *TxSession) Aux() *auxch.Transport {
	return s.aux
}

// Trainer returns the link trainer.
func (s *TxSession) Trainer() *training.Trainer {
	return s.trainer
}

// Messenger returns the sideband messenger.
func (s *TxSession) Messenger() *sideband.TxMessenger {
	return s.messenger
}

// Topology returns the topology manager.
func (s *TxSession) Topology() *topology.Manager {
	return s.topology
}

// Components returns the AUX transport, the trainer, the messenger and the
// topology manager.
func (s *TxSession) Components() []dp.NamedHookable {
	return []dp.NamedHookable{s.aux, s.trainer, s.messenger, s.topology}
}

// IsConnected polls hot-plug detect. Changes are reported to the event sink.
func (s *TxSession) IsConnected() bool {
	return s.aux.IsConnected()
}

// EstablishLink checks that a receiver is attached, reads its capabilities
// and trains the main link.
func (s *TxSession) EstablishLink() error {
	if err := s.aux.CheckConnected(); err != nil {
		return err
	}

	return s.trainer.EstablishLink()
}

// StartMst enables MST on the receiver, discovers the topology and orders
// the sinks by tiled display. Discovery and tiling errors are joined; the
// nodes that could be reached stay usable.
func (s *TxSession) StartMst() error {
	if err := s.topology.EnableMst(); err != nil {
		return err
	}

	discoverErr := s.topology.Discover()
	if _, ok := s.topology.Root(); !ok {
		return discoverErr
	}

	return errors.Join(discoverErr, s.topology.SortSinksByTiling())
}

// StopMst clears the payload table and disables MST.
func (s *TxSession) StopMst() error {
	return errors.Join(s.topology.ClearPayloadTable(), s.topology.DisableMst())
}

// StreamRequest asks for a stream of pbn payload bandwidth to the sink with
// the given index.
type StreamRequest struct {
	Sink int
	PBN  uint16
}

// AllocateStreams gives request i stream ID i+1 at the trained link rate and
// lane count, disables the other streams and programs the payload tables.
func (s *TxSession) AllocateStreams(reqs ...StreamRequest) error {
	if len(reqs) > topology.NumStreams {
		return dp.ErrCapacity
	}

	cfg := s.trainer.Config()

	for id := 1; id <= topology.NumStreams; id++ {
		enable := id <= len(reqs)
		if err := s.topology.EnableStream(id, enable); err != nil {
			return err
		}

		if !enable {
			continue
		}

		if err := s.topology.SetStreamSink(id, reqs[id-1].Sink); err != nil {
			return err
		}

		err := s.topology.SetStreamPbn(id, reqs[id-1].PBN,
			cfg.LinkRate, cfg.LaneCount)
		if err != nil {
			return err
		}
	}

	return s.topology.AllocatePayloadStreams()
}
