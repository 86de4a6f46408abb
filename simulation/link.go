package simulation

import "github.com/sarchlab/dplink/dp"

// LinkState is what the receiver observes of the main link while training.
type LinkState struct {
	Rate         dp.LinkRate
	Lanes        int
	Pattern      uint8
	VoltageSwing uint8
	PreEmphasis  uint8

	// Iteration counts the status reads since the pattern was last set.
	Iteration int
}

// LinkBehavior decides how a simulated receiver reacts to training.
type LinkBehavior interface {
	// ClockRecoveryLanes returns how many leading lanes lock clock recovery.
	ClockRecoveryLanes(s LinkState) int

	// Equalized returns true if channel equalization completes.
	Equalized(s LinkState) bool

	// Request returns the drive levels the receiver asks for.
	Request(s LinkState) (voltageSwing, preEmphasis uint8)
}

// IdealLink trains at any rate and lane count on the first try.
type IdealLink struct{}

// ClockRecoveryLanes locks every lane.
func (IdealLink) ClockRecoveryLanes(s LinkState) int { return s.Lanes }

// Equalized always succeeds.
func (IdealLink) Equalized(LinkState) bool { return true }

// Request asks for the lowest drive levels.
func (IdealLink) Request(LinkState) (uint8, uint8) { return 0, 0 }

// DriveLevelLink locks clock recovery once the transmitter drives at least
// MinSwing, and asks for RequestSwing and RequestPreEmphasis until then.
type DriveLevelLink struct {
	MinSwing           uint8
	RequestSwing       uint8
	RequestPreEmphasis uint8
}

// ClockRecoveryLanes locks every lane at a sufficient swing.
func (l DriveLevelLink) ClockRecoveryLanes(s LinkState) int {
	if s.VoltageSwing >= l.MinSwing {
		return s.Lanes
	}

	return 0
}

// Equalized always succeeds.
func (DriveLevelLink) Equalized(LinkState) bool { return true }

// Request asks for the configured drive levels.
func (l DriveLevelLink) Request(LinkState) (uint8, uint8) {
	return l.RequestSwing, l.RequestPreEmphasis
}

// DeadLink never locks clock recovery. It asks for increasing swing so that
// every clock recovery attempt ends at the maximum level.
type DeadLink struct{}

// ClockRecoveryLanes locks no lane.
func (DeadLink) ClockRecoveryLanes(LinkState) int { return 0 }

// Equalized never succeeds.
func (DeadLink) Equalized(LinkState) bool { return false }

// Request asks for one more swing level than the current one.
func (DeadLink) Request(s LinkState) (uint8, uint8) {
	return min(s.VoltageSwing+1, dp.MaxVoltageSwing), 0
}

// LimitedLink trains only at or below MaxRate with at most MaxLanes lanes.
// Above MaxLanes the first MaxLanes lanes still lock clock recovery.
type LimitedLink struct {
	MaxRate  dp.LinkRate
	MaxLanes int
}

// ClockRecoveryLanes locks up to MaxLanes lanes at a supported rate.
func (l LimitedLink) ClockRecoveryLanes(s LinkState) int {
	if s.Rate > l.MaxRate {
		return 0
	}

	return min(s.Lanes, l.MaxLanes)
}

// Equalized succeeds within the limits.
func (l LimitedLink) Equalized(s LinkState) bool {
	return s.Rate <= l.MaxRate && s.Lanes <= l.MaxLanes
}

// Request asks for increasing swing.
func (LimitedLink) Request(s LinkState) (uint8, uint8) {
	return min(s.VoltageSwing+1, dp.MaxVoltageSwing), 0
}
