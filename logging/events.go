package logging

import (
	"go.uber.org/zap"

	"github.com/sarchlab/dplink/dp"
)

// EventLogger is a dp.EventSink that logs every event. Events are forwarded
// to Next when it is set.
type EventLogger struct {
	Logger *zap.Logger
	Next   dp.EventSink
}

// NewEventLogger creates an event sink that logs to logger and forwards to
// next. A nil next is allowed.
func NewEventLogger(logger *zap.Logger, next dp.EventSink) *EventLogger {
	if next == nil {
		next = dp.NopEventSink{}
	}

	return &EventLogger{Logger: logger, Next: next}
}

// HotPlugChanged logs a hot-plug change.
func (l *EventLogger) HotPlugChanged(connected bool) {
	l.Logger.Info("hot plug changed", zap.Bool("connected", connected))
	l.Next.HotPlugChanged(connected)
}

// LinkTrained logs the outcome of a training run.
func (l *EventLogger) LinkTrained(success bool, laneCount int, rate dp.LinkRate) {
	l.Logger.Info("link trained",
		zap.Bool("success", success),
		zap.Int("lanes", laneCount),
		zap.Stringer("rate", rate))
	l.Next.LinkTrained(success, laneCount, rate)
}

// TopologyDiscovered logs the discovered topology size.
func (l *EventLogger) TopologyDiscovered(nodes, sinks int, err error) {
	fields := []zap.Field{zap.Int("nodes", nodes), zap.Int("sinks", sinks)}
	if err != nil {
		l.Logger.Warn("topology discovered with errors",
			append(fields, zap.Error(err))...)
	} else {
		l.Logger.Info("topology discovered", fields...)
	}

	l.Next.TopologyDiscovered(nodes, sinks, err)
}

// PayloadTableChanged logs a payload table change.
func (l *EventLogger) PayloadTableChanged(vcID uint8, start, count int) {
	l.Logger.Info("payload table changed",
		zap.Uint8("vc", vcID), zap.Int("start", start), zap.Int("count", count))
	l.Next.PayloadTableChanged(vcID, start, count)
}

// DownRequestHandled logs a handled down request.
func (l *EventLogger) DownRequestHandled(msgType uint8, nacked bool) {
	l.Logger.Debug("down request handled",
		zap.Uint8("type", msgType), zap.Bool("nacked", nacked))
	l.Next.DownRequestHandled(msgType, nacked)
}

// TrainingLost logs a lost link.
func (l *EventLogger) TrainingLost() {
	l.Logger.Warn("training lost")
	l.Next.TrainingLost()
}

// Unplugged logs an unplugged upstream cable.
func (l *EventLogger) Unplugged() {
	l.Logger.Warn("unplugged")
	l.Next.Unplugged()
}
