package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/dplink/monitoring"
)

var (
	monitorPort int
	openBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bring the link up and serve the monitoring page.",
	Long: "`serve` trains the link, discovers the MST topology when the " +
		"receiver is a branch, and serves component state and metrics " +
		"until interrupted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := newBench(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("port") {
			b.cfg.MonitorPort = monitorPort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cmd.OutOrStdout(), b)
	},
}

func init() {
	serveCmd.Flags().IntVar(&monitorPort, "port", 0,
		"port of the monitoring server, random if below 1000")
	serveCmd.Flags().BoolVar(&openBrowser, "open", false,
		"open the monitoring page in a browser")
	rootCmd.AddCommand(serveCmd)
}

func newMonitor(b *bench) *monitoring.Monitor {
	m := monitoring.NewMonitor().WithPortNumber(b.cfg.MonitorPort)

	for _, c := range b.sim.Components() {
		m.RegisterComponent(c)
	}

	return m
}

// bringUp trains the link and, on a branch, discovers the topology. Each
// step advances the progress bar.
func bringUp(w io.Writer, b *bench, bar *monitoring.ProgressBar) error {
	bar.Begin("link training")

	if err := b.session.EstablishLink(); err != nil {
		failColor.Fprintf(w, "link training failed: %v\n", err)
		return err
	}

	bar.Done()

	if b.sim.Sink().Branch() == nil {
		bar.Skip(1)
		okColor.Fprintln(w, "link up")

		return nil
	}

	bar.Begin("topology discovery")

	err := b.session.StartMst()
	if err != nil {
		failColor.Fprintf(w, "discovery incomplete: %v\n", err)
	}

	bar.Done()

	renderNodes(w, b.session.Topology())

	return nil
}

func runServe(ctx context.Context, w io.Writer, b *bench) error {
	m := newMonitor(b)

	bar := m.CreateProgressBar("Bring-up", 2)
	if err := bringUp(w, b, bar); err != nil {
		b.logger.Warn("bring-up failed, serving the failed state",
			zap.Error(err))
	}

	m.CompleteProgressBar(bar)

	addr, err := m.StartServer()
	if err != nil {
		return err
	}

	infoColor.Fprintf(w, "monitoring at %s\n", addr)

	if openBrowser {
		if err := browser.OpenURL(addr); err != nil {
			b.logger.Warn("cannot open browser", zap.Error(err))
		}
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return m.StopServer(shutdownCtx)
}
