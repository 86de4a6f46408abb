package dplink

import (
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/topology"
)

// RxSession answers the sideband traffic of one DisplayPort receiver.
type RxSession struct {
	name      string
	messenger *sideband.RxMessenger
	responder *topology.Responder
}

func (*RxSession) role() {}

// Name returns the name of the session.
func (s *RxSession) Name() string {
	return s.name
}

// Messenger returns the sideband messenger.
func (s *RxSession) Messenger() *sideband.RxMessenger {
	return s.messenger
}

// Responder returns the topology responder.
func (s *RxSession) Responder() *topology.Responder {
	return s.responder
}

// Components returns the messenger and the responder.
func (s *RxSession) Components() []dp.NamedHookable {
	return []dp.NamedHookable{s.messenger, s.responder}
}

// ServiceInterrupts handles every pending cause of the RX interrupt
// register.
func (s *RxSession) ServiceInterrupts() error {
	return s.responder.ServiceInterrupts()
}
