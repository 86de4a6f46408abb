// Package logging turns protocol hooks and events into structured zap log
// entries.
package logging

import (
	"go.uber.org/zap"

	"github.com/sarchlab/dplink/auxch"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/topology"
	"github.com/sarchlab/dplink/training"
)

// NewLogger builds a zap logger at the given level ("debug", "info", "warn",
// "error"). An empty level means info.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = lvl

	return cfg.Build()
}

// A LogHook writes one log entry per hook invocation. AUX and sideband
// traffic is logged at debug level, state changes at info level.
type LogHook struct {
	logger *zap.Logger
}

// NewLogHook creates a hook that logs to logger.
func NewLogHook(logger *zap.Logger) *LogHook {
	return &LogHook{logger: logger}
}

// Func logs a hook invocation.
func (h *LogHook) Func(ctx dp.HookCtx) {
	logger := h.logger
	if n, ok := ctx.Domain.(dp.Named); ok {
		logger = logger.With(zap.String("component", n.Name()))
	}

	switch item := ctx.Item.(type) {
	case *auxch.Transaction:
		logAux(logger, ctx, item)
	case training.StateRecord:
		logTraining(logger, ctx, item)
	case sideband.Message:
		logSideband(logger, ctx, item)
	case topology.Node:
		logger.Info("topology node",
			zap.Stringer("target", item.Target),
			zap.Stringer("guid", item.GUID),
			zap.Bool("branch", item.IsBranch()),
			zap.Uint8("dpcdRev", item.DPCDRev),
			zap.Bool("msgCapable", item.MsgCapable))
	case topology.PayloadAllocation:
		logger.Info("payload allocated",
			zap.Uint8("vc", item.VcID),
			zap.Int("start", item.Start),
			zap.Int("count", item.Count))
	}
}

func logAux(logger *zap.Logger, ctx dp.HookCtx, txn *auxch.Transaction) {
	fields := []zap.Field{
		zap.String("id", txn.ID),
		zap.Stringer("cmd", txn.Cmd),
		zap.Uint32("addr", txn.Address),
		zap.Int("bytes", txn.NumBytes),
	}

	if ctx.Pos != dp.HookPosAuxEnd {
		logger.Debug("aux start", fields...)
		return
	}

	res, _ := ctx.Detail.(auxch.Result)
	fields = append(fields,
		zap.Int("transferred", res.BytesTransferred),
		zap.Int("defers", res.Defers),
		zap.Int("timeouts", res.Timeouts))

	if res.Err != nil {
		logger.Warn("aux failed", append(fields, zap.Error(res.Err))...)
		return
	}

	logger.Debug("aux done", fields...)
}

func logTraining(logger *zap.Logger, ctx dp.HookCtx, rec training.StateRecord) {
	fields := []zap.Field{
		zap.Stringer("state", rec.State),
		zap.Stringer("rate", rec.LinkRate),
		zap.Int("lanes", rec.LaneCount),
		zap.Uint8("vs", rec.VoltageSwing),
		zap.Uint8("pe", rec.PreEmphasis),
	}

	if ctx.Pos != dp.HookPosTrainingDone {
		logger.Debug("training state", fields...)
		return
	}

	if err, ok := ctx.Detail.(error); ok && err != nil {
		logger.Warn("training failed", append(fields, zap.Error(err))...)
		return
	}

	logger.Info("training done", fields...)
}

func logSideband(logger *zap.Logger, ctx dp.HookCtx, msg sideband.Message) {
	msgName := "sideband receive"
	if ctx.Pos == dp.HookPosSidebandSend {
		msgName = "sideband send"
	}

	logger.Debug(msgName,
		zap.Uint8("lct", msg.Header.LinkCountTotal),
		zap.Uint8s("rad", msg.Header.RelativeAddress),
		zap.Bool("broadcast", msg.Header.Broadcast),
		zap.Bool("som", msg.Header.StartOfTransaction),
		zap.Bool("eom", msg.Header.EndOfTransaction),
		zap.Uint8("seq", msg.Header.SequenceNum),
		zap.Int("len", len(msg.Body)))
}
