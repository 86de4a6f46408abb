package dp

// EventSink receives protocol events from a session. Embed NopEventSink to
// implement only the events of interest.
type EventSink interface {
	// HotPlugChanged is called when a connection check observes a change of
	// the hot-plug-detect state.
	HotPlugChanged(connected bool)

	// LinkTrained is called after a training run reaches a terminal state.
	LinkTrained(success bool, laneCount int, rate LinkRate)

	// TopologyDiscovered is called after discovery with the node and sink
	// counts and the joined discovery error, if any.
	TopologyDiscovered(nodes, sinks int, err error)

	// PayloadTableChanged is called after the local payload table changed.
	PayloadTableChanged(vcID uint8, start, count int)

	// DownRequestHandled is called by a receiver after replying to a
	// sideband down request of the given message type.
	DownRequestHandled(msgType uint8, nacked bool)

	// TrainingLost is called by a receiver when the link drops.
	TrainingLost()

	// Unplugged is called by a receiver when the upstream cable is removed.
	Unplugged()
}

// NopEventSink implements every EventSink method as a no-op.
type NopEventSink struct{}

// HotPlugChanged does nothing.
func (NopEventSink) HotPlugChanged(bool) {}

// LinkTrained does nothing.
func (NopEventSink) LinkTrained(bool, int, LinkRate) {}

// TopologyDiscovered does nothing.
func (NopEventSink) TopologyDiscovered(int, int, error) {}

// PayloadTableChanged does nothing.
func (NopEventSink) PayloadTableChanged(uint8, int, int) {}

// DownRequestHandled does nothing.
func (NopEventSink) DownRequestHandled(uint8, bool) {}

// TrainingLost does nothing.
func (NopEventSink) TrainingLost() {}

// Unplugged does nothing.
func (NopEventSink) Unplugged() {}
