package recording

import (
	"github.com/sarchlab/dplink/auxch"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/idgen"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/topology"
	"github.com/sarchlab/dplink/training"
)

// Hook records the hook invocations of the components it is attached to.
type Hook struct {
	recorder DataRecorder
	ids      idgen.Generator
	seq      int64
	run      string
}

// NewHook creates the trace tables in recorder and returns a hook that
// fills them. Training runs are named by ids.
func NewHook(recorder DataRecorder, ids idgen.Generator) *Hook {
	recorder.CreateTable(AuxTable, AuxEntry{})
	recorder.CreateTable(TrainingTable, TrainingEntry{})
	recorder.CreateTable(SidebandTable, SidebandEntry{})
	recorder.CreateTable(NodeTable, NodeEntry{})
	recorder.CreateTable(PayloadAllocTable, PayloadEntry{})

	return &Hook{
		recorder: recorder,
		ids:      ids,
	}
}

// Func records one hook invocation.
func (h *Hook) Func(ctx dp.HookCtx) {
	switch ctx.Pos {
	case dp.HookPosAuxEnd:
		h.recordAux(ctx)
	case dp.HookPosTrainingState, dp.HookPosTrainingDone:
		h.recordTraining(ctx)
	case dp.HookPosSidebandSend, dp.HookPosSidebandReceive:
		h.recordSideband(ctx)
	case dp.HookPosTopologyNode:
		h.recordNode(ctx)
	case dp.HookPosPayloadAllocated:
		h.recordPayload(ctx)
	}
}

func (h *Hook) next() int64 {
	h.seq++
	return h.seq
}

func componentName(ctx dp.HookCtx) string {
	if n, ok := ctx.Domain.(dp.Named); ok {
		return n.Name()
	}

	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

func (h *Hook) recordAux(ctx dp.HookCtx) {
	txn, ok := ctx.Item.(*auxch.Transaction)
	if !ok {
		return
	}

	res, _ := ctx.Detail.(auxch.Result)

	h.recorder.InsertData(AuxTable, AuxEntry{
		Seq:         h.next(),
		ID:          txn.ID,
		Component:   componentName(ctx),
		Command:     txn.Cmd.String(),
		Address:     txn.Address,
		NumBytes:    int64(txn.NumBytes),
		Transferred: int64(res.BytesTransferred),
		Defers:      int64(res.Defers),
		Timeouts:    int64(res.Timeouts),
		Error:       errString(res.Err),
	})
}

func (h *Hook) recordTraining(ctx dp.HookCtx) {
	rec, ok := ctx.Item.(training.StateRecord)
	if !ok {
		return
	}

	if h.run == "" {
		h.run = h.ids.Generate()
	}

	final := ctx.Pos == dp.HookPosTrainingDone
	err, _ := ctx.Detail.(error)

	h.recorder.InsertData(TrainingTable, TrainingEntry{
		Seq:          h.next(),
		Run:          h.run,
		Component:    componentName(ctx),
		State:        rec.State.String(),
		LinkRate:     rec.LinkRate.String(),
		LaneCount:    int64(rec.LaneCount),
		VoltageSwing: rec.VoltageSwing,
		PreEmphasis:  rec.PreEmphasis,
		Final:        final,
		Error:        errString(err),
	})

	if final {
		h.run = ""
	}
}

func (h *Hook) recordSideband(ctx dp.HookCtx) {
	msg, ok := ctx.Item.(sideband.Message)
	if !ok {
		return
	}

	dir := "send"
	if ctx.Pos == dp.HookPosSidebandReceive {
		dir = "receive"
	}

	id := ""
	if msg.Header.StartOfTransaction && len(msg.Body) > 0 {
		id = sideband.RequestID(msg.Body[0] &^ sideband.ReplyNack).String()
	}

	h.recorder.InsertData(SidebandTable, SidebandEntry{
		Seq:            h.next(),
		Component:      componentName(ctx),
		Direction:      dir,
		LinkCountTotal: msg.Header.LinkCountTotal,
		Broadcast:      msg.Header.Broadcast,
		Path:           msg.Header.Path,
		BodyLength:     msg.Header.BodyLength,
		Start:          msg.Header.StartOfTransaction,
		End:            msg.Header.EndOfTransaction,
		SequenceNum:    msg.Header.SequenceNum,
		RequestID:      id,
	})
}

func (h *Hook) recordNode(ctx dp.HookCtx) {
	n, ok := ctx.Item.(topology.Node)
	if !ok {
		return
	}

	kind := "sink"
	if n.IsBranch() {
		kind = "branch"
	}

	h.recorder.InsertData(NodeTable, NodeEntry{
		Seq:        h.next(),
		Component:  componentName(ctx),
		Kind:       kind,
		Target:     n.Target.String(),
		GUID:       n.GUID.String(),
		DPCDRev:    n.DPCDRev,
		MsgCapable: n.MsgCapable,
	})
}

func (h *Hook) recordPayload(ctx dp.HookCtx) {
	a, ok := ctx.Item.(topology.PayloadAllocation)
	if !ok {
		return
	}

	h.recorder.InsertData(PayloadAllocTable, PayloadEntry{
		Seq:       h.next(),
		Component: componentName(ctx),
		VcID:      a.VcID,
		Start:     int64(a.Start),
		Count:     int64(a.Count),
	})
}
