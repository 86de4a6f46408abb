package training

import (
	"fmt"
	"log"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
)

//go:generate mockgen -destination "mock_training_test.go" -package $GOPACKAGE -write_package_comment=false github.com/sarchlab/dplink/training AuxChannel

// AuxChannel is the DPCD access used by the trainer.
type AuxChannel interface {
	Read(addr uint32, buf []byte) error
	Write(addr uint32, data []byte) error
	CheckConnected() error
}

const (
	sameSwingLimit       = 5
	equalizationAttempts = 5
	linkStatusRetries    = 5
)

// Trainer trains the main link of a DisplayPort transmitter.
type Trainer struct {
	*dp.HookableBase

	name     string
	channel  AuxChannel
	bus      regio.Bus
	timer    regio.Timer
	sink     dp.EventSink
	protocol dp.Protocol
	adaptive bool

	maxLinkRate dp.LinkRate
	maxLanes    int

	cfg    LinkConfig
	status [dp.DpcdLinkStatusLength]byte
}

// Name returns the name of the trainer.
func (t *Trainer) Name() string {
	return t.name
}

// Config returns a copy of the current link configuration.
func (t *Trainer) Config() LinkConfig {
	return t.cfg
}

// Protocol returns the protocol generation of the TX core.
func (t *Trainer) Protocol() dp.Protocol {
	return t.protocol
}

// SetAdaptive enables or disables link rate and lane count downshift.
func (t *Trainer) SetAdaptive(adaptive bool) {
	t.adaptive = adaptive
}

// GetRxCapabilities reads the receiver capability field and derives the
// maximum link rate and lane count common to both ends.
func (t *Trainer) GetRxCapabilities() error {
	if err := t.channel.CheckConnected(); err != nil {
		return err
	}

	caps := make([]byte, dp.DpcdRxCapsLength)
	if err := t.channel.Read(dp.DpcdRev, caps); err != nil {
		return fmt.Errorf("reading receiver capabilities: %w", err)
	}

	rxRate := dp.LinkRate(caps[dp.DpcdMaxLinkRate])
	interval := caps[dp.DpcdTrainingAuxRdInterv]

	t.cfg.ExtendedCapabilities = interval&dp.ExtRxCapsPresent != 0
	if t.cfg.ExtendedCapabilities && t.protocol == dp.ProtocolDP14 {
		ext := make([]byte, dp.DpcdRxCapsLength)
		if err := t.channel.Read(dp.DpcdExtRev, ext); err != nil {
			return fmt.Errorf("reading extended capabilities: %w", err)
		}

		if dp.LinkRate(ext[dp.DpcdMaxLinkRate]) == dp.LinkRate810 {
			rxRate = dp.LinkRate810
		}
	}

	t.cfg.MaxLinkRate = t.maxLinkRate
	if rxRate.Valid() && rxRate < t.maxLinkRate {
		t.cfg.MaxLinkRate = rxRate
	}

	rxLanes := int(caps[dp.DpcdMaxLaneCount] & dp.MaxLaneCountMask)
	t.cfg.MaxLaneCount = dp.FloorLaneCount(min(rxLanes, t.maxLanes))

	if t.cfg.MaxLaneCount == 0 {
		return fmt.Errorf("%w: receiver reports %d lanes",
			dp.ErrProtocolFailure, rxLanes)
	}

	t.cfg.DPCDRev = caps[dp.DpcdRev]
	t.cfg.TPS3 = caps[dp.DpcdMaxLaneCount]&dp.TPS3Supported != 0
	t.cfg.TPS4 = caps[dp.DpcdMaxDownspread]&dp.TPS4Supported != 0
	t.cfg.SupportsEnhancedFraming =
		caps[dp.DpcdMaxLaneCount]&dp.EnhancedFrameCap != 0
	t.cfg.SupportsDownspread =
		caps[dp.DpcdMaxDownspread]&dp.MaxDownspreadMask != 0
	t.cfg.TrainingInterval = interval & dp.TrainingAuxRdMask
	t.cfg.CRDoneCount = t.cfg.MaxLaneCount
	t.cfg.CRDoneOldState = t.cfg.MaxLaneCount
	t.cfg.ReceiverCapabilitiesRead = true

	return nil
}

// ConfigureMaxLink sets the link to the maximum rate and lane count common to
// both ends.
func (t *Trainer) ConfigureMaxLink() error {
	if !t.cfg.ReceiverCapabilitiesRead {
		if err := t.GetRxCapabilities(); err != nil {
			return err
		}
	}

	if err := t.SetLinkRate(t.cfg.MaxLinkRate); err != nil {
		return err
	}

	return t.SetLaneCount(t.cfg.MaxLaneCount)
}

// EstablishLink reads the receiver capabilities, configures the maximum
// common link and trains it. The main stream is paused during training if
// it was running.
func (t *Trainer) EstablishLink() error {
	if err := t.GetRxCapabilities(); err != nil {
		return err
	}

	if err := t.SetEnhancedFraming(t.cfg.SupportsEnhancedFraming); err != nil {
		return err
	}

	if err := t.SetDownspread(t.cfg.SupportsDownspread); err != nil {
		return err
	}

	if err := t.ConfigureMaxLink(); err != nil {
		return err
	}

	reenable := t.bus.ReadReg(regio.TxEnableMainStream) != 0
	if reenable {
		t.DisableMainLink()
	}

	if err := t.waitPhyReady(t.maxLanes); err != nil {
		return err
	}

	_, err := t.Train()

	errOff := t.SetTrainingPattern(dp.TrainingPatternOff)
	if err != nil {
		return err
	}

	if errOff != nil {
		return errOff
	}

	if reenable {
		t.EnableMainLink()
	}

	return nil
}

// Train runs the training state machine from clock recovery at the current
// link rate and lane count. Failing to train at every rate and lane count is
// reported with dp.ErrProtocolFailure. AUX errors abort training.
func (t *Trainer) Train() (State, error) {
	if !dp.ValidLaneCount(t.cfg.LaneCount) || !t.cfg.LinkRate.Valid() {
		return Failure, fmt.Errorf("%w: link rate and lane count not set",
			dp.ErrInvalidArgument)
	}

	if t.cfg.CRDoneOldState == 0 {
		t.cfg.CRDoneOldState = t.cfg.LaneCount
	}

	state, err := t.run()
	if err == nil && state == Success {
		err = t.finishTraining()
		if err != nil {
			state = Failure
		}
	}

	t.cfg.CRDoneCount = t.cfg.MaxLaneCount
	t.cfg.CRDoneOldState = t.cfg.MaxLaneCount

	t.InvokeHook(dp.HookCtx{
		Domain: t,
		Pos:    dp.HookPosTrainingDone,
		Item:   t.record(state),
		Detail: err,
	})

	t.sink.LinkTrained(state == Success, t.cfg.LaneCount, t.cfg.LinkRate)

	return state, err
}

func (t *Trainer) run() (State, error) {
	state := ClockRecovery

	for {
		t.InvokeHook(dp.HookCtx{
			Domain: t,
			Pos:    dp.HookPosTrainingState,
			Item:   t.record(state),
		})

		var (
			next State
			err  error
		)

		switch state {
		case ClockRecovery:
			next, err = t.clockRecovery()
		case ChannelEqualization:
			next, err = t.channelEqualization()
		case AdjustLinkRate:
			next, err = t.adjustLinkRate()
		case AdjustLaneCount:
			next, err = t.adjustLaneCount()
		default:
			log.Panicf("unexpected training state %s", state)
		}

		if err != nil {
			return Failure, err
		}

		switch next {
		case Success:
			return Success, nil
		case Failure:
			return Failure, fmt.Errorf(
				"%w: link training failed at every link rate and lane count",
				dp.ErrProtocolFailure)
		case AdjustLinkRate, AdjustLaneCount:
			if !t.adaptive {
				return Failure, fmt.Errorf(
					"%w: link training failed at %s x%d",
					dp.ErrProtocolFailure, t.cfg.LinkRate, t.cfg.LaneCount)
			}

			err := t.SetTrainingPattern(dp.TrainingPatternOff)
			if err != nil {
				return Failure, err
			}
		}

		state = next
	}
}

func (t *Trainer) finishTraining() error {
	if t.protocol == dp.ProtocolDP14 {
		buf := []byte{0}
		if err := t.channel.Read(dp.DpcdLaneCountSet, buf); err != nil {
			return err
		}

		buf[0] |= dp.LaneCountPostLtAdjGranted
		if err := t.channel.Write(dp.DpcdLaneCountSet, buf); err != nil {
			return err
		}
	}

	return t.CheckLinkStatus(t.cfg.LaneCount)
}

func (t *Trainer) clockRecovery() (State, error) {
	delay := Delay(t.cfg.TrainingInterval, ClockRecovery)

	t.cfg.VoltageSwing = 0
	t.cfg.PreEmphasis = 0

	if err := t.SetTrainingPattern(dp.TrainingPattern1); err != nil {
		return Failure, err
	}

	prevSwing := uint8(0)
	sameSwing := 0

	for {
		t.timer.DelayUs(delay)

		if err := t.readLinkStatus(); err != nil {
			return Failure, err
		}

		lanes := t.cfg.LaneCount
		t.cfg.CRDoneCount = ClockRecoveryLanes(t.status[:], lanes)

		if t.cfg.CRDoneCount == lanes {
			return ChannelEqualization, nil
		}

		if prevSwing == t.cfg.VoltageSwing {
			sameSwing++
		} else {
			sameSwing = 0
			prevSwing = t.cfg.VoltageSwing
		}

		if sameSwing >= sameSwingLimit ||
			t.cfg.VoltageSwing == dp.MaxVoltageSwing {
			break
		}

		if err := t.adjustDrive(); err != nil {
			return Failure, err
		}
	}

	return t.afterClockRecoveryFailure()
}

// afterClockRecoveryFailure applies the DP1.4 rule for a partial lock at the
// lowest rate: the lanes that locked are retried at the next higher rate.
func (t *Trainer) afterClockRecoveryFailure() (State, error) {
	_, hasLower := t.cfg.LinkRate.Lower()
	done := t.cfg.CRDoneCount

	if t.protocol != dp.ProtocolDP14 || hasLower || done == 0 ||
		done >= t.cfg.LaneCount {
		return AdjustLinkRate, nil
	}

	higher, ok := t.cfg.LinkRate.Higher()
	if !ok || higher > t.cfg.MaxLinkRate {
		return AdjustLinkRate, nil
	}

	lanes := dp.FloorLaneCount(done)

	if err := t.SetTrainingPattern(dp.TrainingPatternOff); err != nil {
		return Failure, err
	}

	if err := t.SetLinkRate(higher); err != nil {
		return Failure, err
	}

	if err := t.SetLaneCount(lanes); err != nil {
		return Failure, err
	}

	t.cfg.CRDoneOldState = lanes

	return ClockRecovery, nil
}

func (t *Trainer) equalizationPattern() uint8 {
	switch {
	case t.cfg.TPS4 && t.protocol == dp.ProtocolDP14:
		return dp.TrainingPattern4
	case t.cfg.TPS3:
		return dp.TrainingPattern3
	default:
		return dp.TrainingPattern2
	}
}

func (t *Trainer) channelEqualization() (State, error) {
	delay := Delay(t.cfg.TrainingInterval, ChannelEqualization)

	if err := t.SetTrainingPattern(t.equalizationPattern()); err != nil {
		return Failure, err
	}

	crLost := false

	for i := 0; i < equalizationAttempts; i++ {
		t.timer.DelayUs(delay)

		if err := t.readLinkStatus(); err != nil {
			return Failure, err
		}

		if !ClockRecoveryDone(t.status[:], t.cfg.LaneCount) {
			crLost = true
			break
		}

		if ChannelEqualizationDone(t.status[:], t.cfg.LaneCount) {
			return Success, nil
		}

		if err := t.adjustDrive(); err != nil {
			return Failure, err
		}
	}

	if crLost || t.protocol == dp.ProtocolDP14 {
		return AdjustLaneCount, nil
	}

	return AdjustLinkRate, nil
}

func (t *Trainer) adjustLinkRate() (State, error) {
	lower, ok := t.cfg.LinkRate.Lower()
	if !ok {
		return AdjustLaneCount, nil
	}

	if err := t.SetLinkRate(lower); err != nil {
		return Failure, err
	}

	if err := t.SetLaneCount(t.cfg.CRDoneOldState); err != nil {
		return Failure, err
	}

	return ClockRecovery, nil
}

func (t *Trainer) adjustLaneCount() (State, error) {
	lanes, ok := dp.LowerLaneCount(t.cfg.LaneCount)
	if !ok {
		return Failure, nil
	}

	if err := t.SetLaneCount(lanes); err != nil {
		return Failure, err
	}

	if err := t.SetLinkRate(t.cfg.MaxLinkRate); err != nil {
		return Failure, err
	}

	t.cfg.CRDoneOldState = lanes

	return ClockRecovery, nil
}

func (t *Trainer) adjustDrive() error {
	vs, pe := DriveRequest(t.status[:], t.cfg.LaneCount)

	return t.SetVswingPreemp(vs, pe)
}

func (t *Trainer) readLinkStatus() error {
	return t.channel.Read(dp.DpcdStatusLane01, t.status[:])
}

// CheckLinkStatus reads the link status up to five times and returns nil as
// soon as the first lanes lanes hold clock recovery and channel
// equalization.
func (t *Trainer) CheckLinkStatus(lanes int) error {
	if !dp.ValidLaneCount(lanes) {
		return fmt.Errorf("%w: lane count %d", dp.ErrInvalidArgument, lanes)
	}

	if err := t.channel.CheckConnected(); err != nil {
		return err
	}

	for i := 0; i < linkStatusRetries; i++ {
		if err := t.readLinkStatus(); err != nil {
			return err
		}

		if ClockRecoveryDone(t.status[:], lanes) &&
			ChannelEqualizationDone(t.status[:], lanes) {
			return nil
		}
	}

	return fmt.Errorf("%w: link status lost on %d lanes",
		dp.ErrProtocolFailure, lanes)
}

func (t *Trainer) record(s State) StateRecord {
	return StateRecord{
		State:        s,
		LinkRate:     t.cfg.LinkRate,
		LaneCount:    t.cfg.LaneCount,
		VoltageSwing: t.cfg.VoltageSwing,
		PreEmphasis:  t.cfg.PreEmphasis,
	}
}
