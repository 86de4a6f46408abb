// Package dplink assembles the DisplayPort link-layer components into
// sessions. A transmitter session owns the AUX transport, the link trainer,
// the sideband messenger and the topology manager of one TX core. A
// receiver session owns the sideband messenger and the responder of one RX
// core.
package dplink

import (
	"github.com/sarchlab/dplink/dp"
)

// Role is a transmitter or a receiver session. It is implemented only by
// *TxSession and *RxSession; switch on the concrete type to reach the
// operations of one side.
type Role interface {
	dp.Named

	// Components returns the hookable parts of the session.
	Components() []dp.NamedHookable

	role()
}

// AcceptHook registers hook with every component of r.
func AcceptHook(r Role, hook dp.Hook) {
	for _, c := range r.Components() {
		c.AcceptHook(hook)
	}
}
