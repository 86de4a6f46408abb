package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/dplink/auxch"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/topology"
	"github.com/sarchlab/dplink/training"
)

// MetricsHook counts protocol activity in prometheus metrics.
type MetricsHook struct {
	auxTransactions *prometheus.CounterVec
	auxRetries      *prometheus.CounterVec
	trainingRuns    *prometheus.CounterVec
	trainingStates  *prometheus.CounterVec
	sidebandFrags   *prometheus.CounterVec
	topologyNodes   prometheus.Counter
	payloadSlots    *prometheus.GaugeVec
}

// NewMetricsHook creates the metrics and registers them with reg.
func NewMetricsHook(reg prometheus.Registerer) (*MetricsHook, error) {
	h := &MetricsHook{
		auxTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dplink",
			Subsystem: "aux",
			Name:      "transactions_total",
			Help:      "AUX transactions by command and outcome.",
		}, []string{"component", "cmd", "result"}),
		auxRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dplink",
			Subsystem: "aux",
			Name:      "retries_total",
			Help:      "AUX defers and timeouts absorbed by retries.",
		}, []string{"component", "kind"}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dplink",
			Subsystem: "training",
			Name:      "runs_total",
			Help:      "Completed link training runs by terminal state.",
		}, []string{"component", "state"}),
		trainingStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dplink",
			Subsystem: "training",
			Name:      "states_total",
			Help:      "Link training states entered.",
		}, []string{"component", "state"}),
		sidebandFrags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dplink",
			Subsystem: "sideband",
			Name:      "fragments_total",
			Help:      "Sideband fragments by direction.",
		}, []string{"component", "direction"}),
		topologyNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dplink",
			Subsystem: "topology",
			Name:      "nodes_discovered_total",
			Help:      "Topology nodes reported by discovery.",
		}),
		payloadSlots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dplink",
			Subsystem: "topology",
			Name:      "payload_slots",
			Help:      "Payload slots of the last allocation per virtual channel.",
		}, []string{"component", "vc"}),
	}

	collectors := []prometheus.Collector{
		h.auxTransactions,
		h.auxRetries,
		h.trainingRuns,
		h.trainingStates,
		h.sidebandFrags,
		h.topologyNodes,
		h.payloadSlots,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Func updates the metrics for one hook invocation.
func (h *MetricsHook) Func(ctx dp.HookCtx) {
	comp := ""
	if n, ok := ctx.Domain.(dp.Named); ok {
		comp = n.Name()
	}

	switch item := ctx.Item.(type) {
	case *auxch.Transaction:
		if ctx.Pos != dp.HookPosAuxEnd {
			return
		}

		res, _ := ctx.Detail.(auxch.Result)
		result := "ok"
		if res.Err != nil {
			result = "error"
		}

		h.auxTransactions.WithLabelValues(comp, item.Cmd.String(), result).Inc()
		h.auxRetries.WithLabelValues(comp, "defer").Add(float64(res.Defers))
		h.auxRetries.WithLabelValues(comp, "timeout").Add(float64(res.Timeouts))
	case training.StateRecord:
		if ctx.Pos == dp.HookPosTrainingDone {
			h.trainingRuns.WithLabelValues(comp, item.State.String()).Inc()
			return
		}

		h.trainingStates.WithLabelValues(comp, item.State.String()).Inc()
	case sideband.Message:
		dir := "receive"
		if ctx.Pos == dp.HookPosSidebandSend {
			dir = "send"
		}

		h.sidebandFrags.WithLabelValues(comp, dir).Inc()
	case topology.Node:
		h.topologyNodes.Inc()
	case topology.PayloadAllocation:
		h.payloadSlots.WithLabelValues(comp, strconv.Itoa(int(item.VcID))).
			Set(float64(item.Count))
	}
}
