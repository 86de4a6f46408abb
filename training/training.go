// Package training implements DisplayPort main link training: clock recovery,
// channel equalization, and the link rate and lane count downshift that
// follows a failed attempt.
package training

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
)

// State is a state of the link training state machine.
type State int

// States of the link training state machine. Success and Failure are
// terminal.
const (
	ClockRecovery State = iota
	ChannelEqualization
	AdjustLinkRate
	AdjustLaneCount
	Success
	Failure
)

func (s State) String() string {
	switch s {
	case ClockRecovery:
		return "ClockRecovery"
	case ChannelEqualization:
		return "ChannelEqualization"
	case AdjustLinkRate:
		return "AdjustLinkRate"
	case AdjustLaneCount:
		return "AdjustLaneCount"
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal returns true for Success and Failure.
func (s State) Terminal() bool {
	return s == Success || s == Failure
}

// StateRecord is the hook item of dp.HookPosTrainingState and
// dp.HookPosTrainingDone.
type StateRecord struct {
	State        State
	LinkRate     dp.LinkRate
	LaneCount    int
	VoltageSwing uint8
	PreEmphasis  uint8
}

// LinkConfig is the main link configuration owned by a transmitter session.
type LinkConfig struct {
	LaneCount        int
	LinkRate         dp.LinkRate
	MaxLaneCount     int
	MaxLinkRate      dp.LinkRate
	VoltageSwing     uint8
	PreEmphasis      uint8
	Downspread       bool
	EnhancedFraming  bool
	ScramblerEnabled bool

	// CRDoneCount is the number of leading lanes that locked clock recovery
	// in the latest status read. CRDoneOldState is the lane count restored
	// when the link rate is lowered.
	CRDoneCount    int
	CRDoneOldState int

	// Receiver capabilities.
	DPCDRev                  uint8
	TPS3                     bool
	TPS4                     bool
	SupportsEnhancedFraming  bool
	SupportsDownspread       bool
	TrainingInterval         uint8
	ExtendedCapabilities     bool
	ReceiverCapabilitiesRead bool
}
