package training

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
)

const (
	phyPollLimit   = 20000
	phyPollDelayUs = 20
)

func boolReg(b bool) uint32 {
	if b {
		return 1
	}

	return 0
}

func phyClock(r dp.LinkRate) uint32 {
	switch r {
	case dp.LinkRate162:
		return regio.PhyClock162
	case dp.LinkRate270:
		return regio.PhyClock270
	case dp.LinkRate540:
		return regio.PhyClock540
	case dp.LinkRate810:
		return regio.PhyClock810
	default:
		return 0
	}
}

// SetLinkRate switches the PHY clock and sets the link rate on both ends.
func (t *Trainer) SetLinkRate(r dp.LinkRate) error {
	if !r.Valid() || r > t.protocol.MaxLinkRate() {
		return fmt.Errorf("%w: link rate %s not supported by %s",
			dp.ErrInvalidArgument, r, t.protocol)
	}

	if err := t.channel.CheckConnected(); err != nil {
		return err
	}

	if err := t.setClockSpeed(phyClock(r)); err != nil {
		return err
	}

	t.cfg.LinkRate = r
	t.bus.WriteReg(regio.TxLinkBwSet, uint32(r))

	return t.channel.Write(dp.DpcdLinkBwSet, []byte{byte(r)})
}

func (t *Trainer) setClockSpeed(clock uint32) error {
	enabled := t.bus.ReadReg(regio.TxEnable)

	t.bus.WriteReg(regio.TxEnable, 0)
	t.bus.WriteReg(regio.TxPhyClockSelect, clock)

	if enabled != 0 {
		t.bus.WriteReg(regio.TxEnable, 1)
	}

	return t.waitPhyReady(t.maxLanes)
}

func (t *Trainer) waitPhyReady(lanes int) error {
	mask := regio.PhyLanesReady(lanes)

	for i := 0; i < phyPollLimit; i++ {
		if t.bus.ReadReg(regio.TxPhyStatus)&mask == mask {
			return nil
		}

		t.timer.DelayUs(phyPollDelayUs)
	}

	return fmt.Errorf("%w: PHY lanes not ready", dp.ErrTimeout)
}

// SetLaneCount sets the lane count on both ends. The enhanced framing bit of
// LANE_COUNT_SET is preserved.
func (t *Trainer) SetLaneCount(n int) error {
	if !dp.ValidLaneCount(n) {
		return fmt.Errorf("%w: lane count %d", dp.ErrInvalidArgument, n)
	}

	if err := t.channel.CheckConnected(); err != nil {
		return err
	}

	t.cfg.LaneCount = n
	t.bus.WriteReg(regio.TxLaneCountSet, uint32(n))

	buf := []byte{0}
	if err := t.channel.Read(dp.DpcdLaneCountSet, buf); err != nil {
		return err
	}

	buf[0] = buf[0]&^dp.MaxLaneCountMask | byte(n)

	return t.channel.Write(dp.DpcdLaneCountSet, buf)
}

// SetDownspread enables or disables 0.5% downspreading on both ends.
func (t *Trainer) SetDownspread(enable bool) error {
	if err := t.channel.CheckConnected(); err != nil {
		return err
	}

	t.cfg.Downspread = enable
	t.bus.WriteReg(regio.TxDownspreadCtrl, boolReg(enable))

	return t.updateDpcdBit(dp.DpcdDownspreadCtrl, dp.DownspreadCtrlSpreadAmp,
		enable)
}

// SetEnhancedFraming enables or disables enhanced framing on both ends.
func (t *Trainer) SetEnhancedFraming(enable bool) error {
	if err := t.channel.CheckConnected(); err != nil {
		return err
	}

	t.cfg.EnhancedFraming = enable
	t.bus.WriteReg(regio.TxEnhancedFrameEn, boolReg(enable))

	return t.updateDpcdBit(dp.DpcdLaneCountSet, dp.LaneCountEnhancedFrameEn,
		enable)
}

// SetScrambler enables or disables scrambling on both ends.
func (t *Trainer) SetScrambler(enable bool) error {
	if err := t.channel.CheckConnected(); err != nil {
		return err
	}

	t.cfg.ScramblerEnabled = enable
	t.bus.WriteReg(regio.TxScramblingDisable, boolReg(!enable))

	return t.updateDpcdBit(dp.DpcdTrainingPatternSet, dp.ScramblingDisable,
		!enable)
}

func (t *Trainer) updateDpcdBit(addr uint32, bit uint8, set bool) error {
	buf := []byte{0}
	if err := t.channel.Read(addr, buf); err != nil {
		return err
	}

	if set {
		buf[0] |= bit
	} else {
		buf[0] &^= bit
	}

	return t.channel.Write(addr, buf)
}

// SetTrainingPattern selects a training pattern on both ends together with
// the current drive levels. Patterns 1 to 3 disable scrambling.
func (t *Trainer) SetTrainingPattern(pattern uint8) error {
	data := make([]byte, 5)
	data[0] = pattern

	switch pattern {
	case dp.TrainingPatternOff, dp.TrainingPattern4:
		t.bus.WriteReg(regio.TxScramblingDisable, 0)
		t.cfg.ScramblerEnabled = true
	case dp.TrainingPattern1, dp.TrainingPattern2, dp.TrainingPattern3:
		data[0] |= dp.ScramblingDisable
		t.bus.WriteReg(regio.TxScramblingDisable, 1)
		t.cfg.ScramblerEnabled = false
	default:
		return fmt.Errorf("%w: training pattern 0x%02X",
			dp.ErrInvalidArgument, pattern)
	}

	t.bus.WriteReg(regio.TxTrainingPatternSet, uint32(pattern))

	lane := t.applyDriveLevels()
	for i := 1; i < len(data); i++ {
		data[i] = lane
	}

	if pattern == dp.TrainingPatternOff {
		data = data[:1]
	}

	return t.channel.Write(dp.DpcdTrainingPatternSet, data)
}

// SetVswingPreemp sets the drive levels of every lane on both ends.
func (t *Trainer) SetVswingPreemp(voltageSwing, preEmphasis uint8) error {
	if voltageSwing > dp.MaxVoltageSwing || preEmphasis > dp.MaxPreEmphasis {
		return fmt.Errorf("%w: drive level %d/%d",
			dp.ErrInvalidArgument, voltageSwing, preEmphasis)
	}

	t.cfg.VoltageSwing = voltageSwing
	t.cfg.PreEmphasis = clampPreEmphasis(voltageSwing, preEmphasis)

	lane := t.applyDriveLevels()

	return t.channel.Write(dp.DpcdTrainingLane0Set,
		[]byte{lane, lane, lane, lane})
}

// applyDriveLevels programs the PHY of each lane in use and returns the
// TRAINING_LANEx_SET byte for the receiver.
func (t *Trainer) applyDriveLevels() uint8 {
	vs := t.cfg.VoltageSwing
	pe := t.cfg.PreEmphasis

	for i := 0; i < t.cfg.LaneCount; i++ {
		offset := uint32(4 * i)
		t.bus.WriteReg(regio.TxPhyVoltageDiffLane0+offset, uint32(vs)*4+2)
		t.bus.WriteReg(regio.TxPhyPostcursorLane0+offset, uint32(pe)*8+4)
	}

	return LaneDriveSetting(vs, pe)
}

// EnableMainLink resets the scrambler and starts the main stream.
func (t *Trainer) EnableMainLink() {
	t.bus.WriteReg(regio.TxForceScramblerReset, 1)
	t.bus.WriteReg(regio.TxEnableMainStream, 1)
}

// DisableMainLink resets the scrambler and stops the main stream.
func (t *Trainer) DisableMainLink() {
	t.bus.WriteReg(regio.TxForceScramblerReset, 1)
	t.bus.WriteReg(regio.TxEnableMainStream, 0)
}
