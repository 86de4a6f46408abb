package training

import (
	"log"

	"github.com/sarchlab/dplink/dp"
)

// Offsets within the six bytes read from DPCD 0x202.
const (
	statusLane01    = 0
	statusAlign     = 2
	statusAdjReq01  = 4
	statusMinLength = dp.DpcdLinkStatusLength
)

func laneStatus(status []byte, lane int) uint8 {
	b := status[statusLane01+lane/2]
	if lane%2 == 1 {
		b >>= 4
	}

	return b & 0xF
}

func laneRequest(status []byte, lane int) (voltageSwing, preEmphasis uint8) {
	b := status[statusAdjReq01+lane/2]
	if lane%2 == 1 {
		b >>= 4
	}

	return b & 0x3, (b >> 2) & 0x3
}

func mustHaveStatus(status []byte) {
	if len(status) < statusMinLength {
		log.Panicf("link status must hold %d bytes, got %d",
			statusMinLength, len(status))
	}
}

// ClockRecoveryLanes returns how many leading lanes of the first lanes lanes
// report clock recovery done. Status bits of unused lanes are ignored.
func ClockRecoveryLanes(status []byte, lanes int) int {
	mustHaveStatus(status)

	for l := 0; l < lanes; l++ {
		if laneStatus(status, l)&dp.LaneCRDone == 0 {
			return l
		}
	}

	return lanes
}

// ClockRecoveryDone returns true if every lane in use reports clock recovery
// done.
func ClockRecoveryDone(status []byte, lanes int) bool {
	return ClockRecoveryLanes(status, lanes) == lanes
}

// ChannelEqualizationDone returns true if every lane in use reports channel
// equalization and symbol lock and the lanes are aligned.
func ChannelEqualizationDone(status []byte, lanes int) bool {
	mustHaveStatus(status)

	want := dp.LaneChannelEqDone | dp.LaneSymbolLocked
	for l := 0; l < lanes; l++ {
		if laneStatus(status, l)&want != want {
			return false
		}
	}

	return status[statusAlign]&dp.InterlaneAlignDone != 0
}

// DriveRequest returns the highest voltage swing and pre-emphasis any lane in
// use asks for. Pre-emphasis is clamped so that the pair stays within the
// permitted amplitude.
func DriveRequest(status []byte, lanes int) (voltageSwing, preEmphasis uint8) {
	mustHaveStatus(status)

	for l := 0; l < lanes; l++ {
		vs, pe := laneRequest(status, l)
		voltageSwing = max(voltageSwing, vs)
		preEmphasis = max(preEmphasis, pe)
	}

	return voltageSwing, clampPreEmphasis(voltageSwing, preEmphasis)
}

func clampPreEmphasis(voltageSwing, preEmphasis uint8) uint8 {
	limit := 4 - voltageSwing
	if preEmphasis > limit {
		return limit
	}

	return preEmphasis
}

// LaneDriveSetting encodes the TRAINING_LANEx_SET byte for a drive level.
func LaneDriveSetting(voltageSwing, preEmphasis uint8) uint8 {
	b := voltageSwing&dp.VoltageSwingMask |
		(preEmphasis&0x3)<<dp.PreEmphasisShift

	if voltageSwing == dp.MaxVoltageSwing {
		b |= dp.MaxSwingReached
	}

	if preEmphasis == dp.MaxPreEmphasis {
		b |= dp.MaxPreEmphasisReached
	}

	return b
}

// Delay returns the wait between two status reads of the given state for a
// receiver advertising interval in TRAINING_AUX_RD_INTERVAL.
func Delay(interval uint8, s State) uint32 {
	switch interval & dp.TrainingAuxRdMask {
	case 0:
		if s == ClockRecovery {
			return 100
		}

		return 400
	case 1, 2, 3, 4:
		return uint32(interval&dp.TrainingAuxRdMask) * 4000
	default:
		return 20000
	}
}
