package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/sarchlab/dplink"
	"github.com/sarchlab/dplink/config"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/idgen"
	"github.com/sarchlab/dplink/logging"
	"github.com/sarchlab/dplink/recording"
	"github.com/sarchlab/dplink/simulation"
)

// bench is a transmitter session wired to a simulated receiver tree.
type bench struct {
	cfg      config.Config
	sim      *simulation.Simulation
	session  *dplink.TxSession
	logger   *zap.Logger
	recorder recording.DataRecorder
	exec     *recording.ExecRecorder
}

// loadConfig reads the dotenv files and the environment, then applies the
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("topology") {
		cfg.TopologyFile = topologyFile
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if flags.Changed("recorder") {
		cfg.Recorder = recorderKind
	}

	if flags.Changed("record-path") {
		cfg.RecordPath = recordPath
	}

	return cfg, nil
}

func loadTopology(cfg config.Config) (config.Topology, error) {
	if cfg.TopologyFile == "" {
		return config.Topology{}, nil
	}

	return config.LoadTopology(cfg.TopologyFile)
}

func newBench(cmd *cobra.Command) (*bench, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	topo, err := loadTopology(cfg)
	if err != nil {
		return nil, err
	}

	return buildBench(cfg, topo)
}

func buildBench(cfg config.Config, topo config.Topology) (*bench, error) {
	sim, err := topo.Build()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, false)
	if err != nil {
		return nil, err
	}

	session, err := dplink.MakeBuilder().
		WithBus(sim.TxController()).
		WithTimer(sim.Clock()).
		WithEventSink(logging.NewEventLogger(logger, nil)).
		WithConfig(cfg).
		BuildTx("DP")
	if err != nil {
		return nil, err
	}

	dplink.AcceptHook(session, logging.NewLogHook(logger))

	for _, c := range session.Components() {
		if err := sim.RegisterComponent(c); err != nil {
			return nil, err
		}
	}

	b := &bench{
		cfg:     cfg,
		sim:     sim,
		session: session,
		logger:  logger,
	}

	if err := b.startRecording(); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = logger.Sync() })

	return b, nil
}

func (b *bench) startRecording() error {
	var err error

	switch b.cfg.Recorder {
	case "", config.RecorderNone:
		return nil
	case config.RecorderSQLite:
		b.recorder, err = recording.NewSQLiteRecorder(b.cfg.RecordPath)
	case config.RecorderClickHouse:
		ch := b.cfg.ClickHouse
		b.recorder, err = recording.NewClickHouseRecorder(
			recording.ClickHouseOptions{
				Host:     ch.Host,
				Port:     ch.Port,
				Database: ch.Database,
				Username: ch.Username,
				Password: ch.Password,
			})
	default:
		return fmt.Errorf("%w: unknown recorder %q",
			dp.ErrInvalidArgument, b.cfg.Recorder)
	}

	if err != nil {
		return err
	}

	dplink.AcceptHook(b.session, recording.NewHook(b.recorder, idgen.NewXID()))

	b.exec = recording.NewExecRecorder(b.recorder)
	b.exec.Start()
	b.exec.Set("Simulation", b.sim.ID())
	b.exec.Set("Protocol", b.cfg.Protocol.String())

	atexit.Register(func() {
		b.exec.End()

		if err := b.recorder.Close(); err != nil {
			b.logger.Warn("closing recorder", zap.Error(err))
		}
	})

	return nil
}
