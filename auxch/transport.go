// Package auxch implements the AUX channel transaction engine of a DisplayPort
// transmitter, including I2C-over-AUX.
package auxch

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/idgen"
	"github.com/sarchlab/dplink/regio"
)

const (
	readyPollLimit     = 100
	readyPollDelayUs   = 20
	replyPollLimit     = 100
	replyPollDelayUs   = 20
	dataCountPollLimit = 50
	dataCountPollDelay = 100
	hpdPollLimit       = 50
	hpdPollDelayUs     = 1000
	segmentSize        = 256
)

var errDeferred = errors.New("aux: deferred")

// Transport submits one AUX transaction at a time over the TX core registers.
type Transport struct {
	*dp.HookableBase

	name  string
	bus   regio.Bus
	timer regio.Timer
	ids   idgen.Generator
	sink  dp.EventSink

	deferLimit   int
	timeoutLimit int
	retryDelayUs uint32

	stats     Stats
	connected bool
}

// Name returns the name of the transport.
func (t *Transport) Name() string {
	return t.name
}

// Stats returns the counters accumulated so far.
func (t *Transport) Stats() Stats {
	return t.stats
}

// IsConnected polls the hot-plug-detect state and returns true as soon as a
// peer is seen.
func (t *Transport) IsConnected() bool {
	connected := false

	for i := 0; i < hpdPollLimit; i++ {
		if t.bus.ReadReg(regio.TxInterruptSigState)&regio.SigStateHpd != 0 {
			connected = true
			break
		}

		t.timer.DelayUs(hpdPollDelayUs)
	}

	if connected != t.connected {
		t.connected = connected
		t.sink.HotPlugChanged(connected)
	}

	return connected
}

// CheckConnected returns dp.ErrDeviceNotFound if no peer is detected.
func (t *Transport) CheckConnected() error {
	if !t.IsConnected() {
		return dp.ErrDeviceNotFound
	}

	return nil
}

// Read reads len(buf) bytes of DPCD starting at addr.
func (t *Transport) Read(addr uint32, buf []byte) error {
	_, err := t.Submit(&Transaction{
		Cmd:      CmdRead,
		Address:  addr,
		NumBytes: len(buf),
		Data:     buf,
	})

	return err
}

// Write writes data to DPCD starting at addr.
func (t *Transport) Write(addr uint32, data []byte) error {
	_, err := t.Submit(&Transaction{
		Cmd:      CmdWrite,
		Address:  addr,
		NumBytes: len(data),
		Data:     data,
	})

	return err
}

// I2CWrite writes data to the I2C device dev.
func (t *Transport) I2CWrite(dev uint8, data []byte) error {
	_, err := t.Submit(&Transaction{
		Cmd:      CmdI2CWrite,
		Address:  uint32(dev),
		NumBytes: len(data),
		Data:     data,
	})

	return err
}

// I2CRead reads len(buf) bytes from the I2C device dev starting at offset.
// Offsets beyond 255 select an E-DDC segment through the segment pointer.
// Each segment is read in one I2C transaction, so a read that crosses a
// segment boundary rewrites the segment pointer and resumes at offset 0.
func (t *Transport) I2CRead(dev uint8, offset uint16, buf []byte) error {
	segment := uint8(offset / segmentSize)
	segOffset := int(offset % segmentSize)

	done := 0
	for done < len(buf) {
		n := min(len(buf)-done, segmentSize-segOffset)

		if segment != 0 {
			if err := t.writeSegmentPointer(segment); err != nil {
				return err
			}
		}

		_, err := t.Submit(&Transaction{
			Cmd:      CmdI2CWriteMOT,
			Address:  uint32(dev),
			NumBytes: 1,
			Data:     []byte{byte(segOffset)},
		})
		if err != nil {
			return err
		}

		_, err = t.Submit(&Transaction{
			Cmd:      CmdI2CRead,
			Address:  uint32(dev),
			NumBytes: n,
			Data:     buf[done : done+n],
		})
		if err != nil {
			return err
		}

		done += n
		segment++
		segOffset = 0
	}

	return nil
}

func (t *Transport) writeSegmentPointer(segment uint8) error {
	_, err := t.Submit(&Transaction{
		Cmd:      CmdI2CWriteMOT,
		Address:  uint32(SegmentPointerAddress),
		NumBytes: 1,
		Data:     []byte{segment},
	})

	return err
}

// Submit runs a logical transaction and returns the number of bytes
// transferred. Transactions longer than MaxBytesPerTransaction are split;
// native AUX chunks advance the address, I2C chunks keep the address and use
// the MOT command for all but the last chunk.
func (t *Transport) Submit(txn *Transaction) (int, error) {
	if txn.NumBytes < 0 || txn.NumBytes > len(txn.Data) {
		return 0, fmt.Errorf("%w: %d bytes requested with a %d byte buffer",
			dp.ErrInvalidArgument, txn.NumBytes, len(txn.Data))
	}

	if txn.ID == "" {
		txn.ID = t.ids.Generate()
	}

	t.InvokeHook(dp.HookCtx{
		Domain: t,
		Pos:    dp.HookPosAuxStart,
		Item:   txn,
	})

	before := t.stats
	n, err := t.submit(txn)

	t.stats.Transactions++
	if err != nil {
		t.stats.Failures++
	}

	t.InvokeHook(dp.HookCtx{
		Domain: t,
		Pos:    dp.HookPosAuxEnd,
		Item:   txn,
		Detail: Result{
			BytesTransferred: n,
			Defers:           int(t.stats.Defers - before.Defers),
			Timeouts:         int(t.stats.Timeouts - before.Timeouts),
			Err:              err,
		},
	})

	return n, err
}

func (t *Transport) submit(txn *Transaction) (int, error) {
	if err := t.CheckConnected(); err != nil {
		return 0, err
	}

	if txn.NumBytes == 0 {
		return 0, t.request(txn.Cmd, txn.Address, nil)
	}

	done := 0
	addr := txn.Address

	for done < txn.NumBytes {
		n := min(txn.NumBytes-done, MaxBytesPerTransaction)

		cmd := txn.Cmd
		if cmd.IsI2C() && done+n < txn.NumBytes {
			cmd = cmd.WithMOT()
		}

		err := t.request(cmd, addr, txn.Data[done:done+n])
		if err != nil {
			return done, fmt.Errorf("aux %s 0x%05X: %w", cmd, addr, err)
		}

		done += n

		if !cmd.IsI2C() {
			addr += uint32(n)
		}
	}

	return done, nil
}

// request sends one physical transaction, resending on deferrals and
// timeouts until either budget runs out.
func (t *Transport) request(cmd Command, addr uint32, data []byte) error {
	defers := 0
	timeouts := 0

	for defers < t.deferLimit && timeouts < t.timeoutLimit {
		err := t.waitReady()
		if err == nil {
			err = t.send(cmd, addr, data)
		}

		switch {
		case err == nil:
			return nil
		case errors.Is(err, errDeferred):
			defers++
			t.stats.Defers++
		case errors.Is(err, dp.ErrTimeout):
			timeouts++
			t.stats.Timeouts++
		default:
			return err
		}

		t.timer.DelayUs(t.retryDelayUs)
	}

	if defers >= t.deferLimit {
		return fmt.Errorf("%w: deferred %d times", dp.ErrTimeout, defers)
	}

	return fmt.Errorf("%w: no reply after %d attempts", dp.ErrTimeout, timeouts)
}

func (t *Transport) waitReady() error {
	busy := uint32(regio.ReplyStatusInProgress | regio.RequestInProgress)

	for i := 0; i < readyPollLimit; i++ {
		if t.bus.ReadReg(regio.TxReplyStatus)&busy == 0 {
			return nil
		}

		t.timer.DelayUs(readyPollDelayUs)
	}

	return fmt.Errorf("%w: channel busy", dp.ErrTimeout)
}

func (t *Transport) send(cmd Command, addr uint32, data []byte) error {
	t.bus.WriteReg(regio.TxAuxAddress, addr)

	if !cmd.IsRead() {
		for _, b := range data {
			t.bus.WriteReg(regio.TxAuxWriteFifo, uint32(b))
		}
	}

	word := uint32(cmd) << regio.AuxCmdShift
	if len(data) == 0 {
		word |= regio.AuxCmdAddressOnly
	} else {
		word |= uint32(len(data)-1) & regio.AuxCmdNumBytesMask
	}

	t.bus.WriteReg(regio.TxAuxCmd, word)

	if err := t.waitReply(); err != nil {
		return err
	}

	code := t.bus.ReadReg(regio.TxAuxReplyCode)
	switch code {
	case regio.AuxReplyAck:
		if cmd.IsRead() && len(data) > 0 {
			return t.drain(data)
		}

		return nil
	case regio.AuxReplyDefer, regio.AuxReplyI2CDefer:
		return errDeferred
	case regio.AuxReplyNack, regio.AuxReplyI2CNack:
		t.stats.Nacks++
		return dp.ErrNacked
	default:
		return fmt.Errorf("%w: unknown reply code 0x%X", dp.ErrTimeout, code)
	}
}

func (t *Transport) waitReply() error {
	for i := 0; i < replyPollLimit; i++ {
		status := t.bus.ReadReg(regio.TxReplyStatus)
		if status&regio.ReplyStatusError != 0 {
			return fmt.Errorf("%w: reply error", dp.ErrTimeout)
		}

		sig := t.bus.ReadReg(regio.TxInterruptSigState)
		if sig&regio.SigStateReplyTimeout != 0 {
			return fmt.Errorf("%w: reply timeout", dp.ErrTimeout)
		}

		if status&regio.ReplyStatusReceived != 0 &&
			status&regio.ReplyStatusInProgress == 0 {
			return nil
		}

		t.timer.DelayUs(replyPollDelayUs)
	}

	return fmt.Errorf("%w: no reply", dp.ErrTimeout)
}

func (t *Transport) drain(data []byte) error {
	want := uint32(len(data))

	count := t.bus.ReadReg(regio.TxReplyDataCount)
	for i := 0; count != want && i < dataCountPollLimit; i++ {
		t.timer.DelayUs(dataCountPollDelay)
		count = t.bus.ReadReg(regio.TxReplyDataCount)
	}

	if count != want {
		return fmt.Errorf("%w: %d of %d bytes", dp.ErrDataLost, count, want)
	}

	for i := range data {
		data[i] = byte(t.bus.ReadReg(regio.TxAuxReplyData))
	}

	return nil
}
