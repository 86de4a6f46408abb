package cmd

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dplink/config"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/recording"
)

func quietConfig() config.Config {
	cfg := config.Default()
	cfg.LogLevel = "error"

	return cfg
}

var _ = Describe("train", func() {
	It("should report the trained link", func() {
		b, err := buildBench(quietConfig(), config.Topology{})
		Expect(err).ToNot(HaveOccurred())

		out := &bytes.Buffer{}
		Expect(runTrain(out, b, true)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("link trained: 4 lane(s) at 5.40Gbps"))
		Expect(out.String()).To(ContainSubstring("RATE"))
		Expect(b.sim.Sink().Attempts()).ToNot(BeEmpty())
	})

	It("should report a failed link", func() {
		topo := config.Topology{
			Sink: config.SinkSpec{Link: config.LinkSpec{Kind: "dead"}},
		}

		b, err := buildBench(quietConfig(), topo)
		Expect(err).ToNot(HaveOccurred())

		out := &bytes.Buffer{}
		Expect(runTrain(out, b, false)).ToNot(Succeed())
		Expect(out.String()).To(ContainSubstring("link training failed"))
	})

	It("should register the session with the simulation", func() {
		b, err := buildBench(quietConfig(), config.Topology{})
		Expect(err).ToNot(HaveOccurred())

		_, ok := b.sim.GetComponentByName("DP.Trainer")
		Expect(ok).To(BeTrue())
		Expect(b.sim.Components()).To(HaveLen(4))
	})
})

var _ = Describe("discover", func() {
	It("should list the example topology and allocate streams", func() {
		b, err := buildBench(quietConfig(), exampleTopology())
		Expect(err).ToNot(HaveOccurred())

		out := &bytes.Buffer{}
		Expect(runDiscover(out, b, []int{1000, 500})).To(Succeed())

		Expect(out.String()).To(ContainSubstring("4 node(s), 3 sink(s)"))
		Expect(out.String()).To(ContainSubstring("branch"))

		table := b.session.Topology().PayloadTable()
		Expect(table.Slots(1)).To(Equal(25))
		Expect(table.Slots(2)).To(Equal(13))
		Expect(out.String()).To(ContainSubstring("25 slot(s) free"))
	})

	It("should refuse a single-stream sink", func() {
		b, err := buildBench(quietConfig(), config.Topology{})
		Expect(err).ToNot(HaveOccurred())

		out := &bytes.Buffer{}
		Expect(runDiscover(out, b, nil)).To(MatchError(dp.ErrProtocolFailure))
		Expect(out.String()).To(ContainSubstring("topology discovery failed"))
	})

	It("should reject out of range bandwidth numbers", func() {
		b, err := buildBench(quietConfig(), exampleTopology())
		Expect(err).ToNot(HaveOccurred())

		out := &bytes.Buffer{}
		Expect(runDiscover(out, b, []int{0})).ToNot(Succeed())
	})
})

var _ = Describe("bench", func() {
	It("should record to sqlite", func() {
		cfg := quietConfig()
		cfg.Recorder = config.RecorderSQLite
		cfg.RecordPath = filepath.Join(GinkgoT().TempDir(), "run")

		b, err := buildBench(cfg, config.Topology{})
		Expect(err).ToNot(HaveOccurred())
		Expect(runTrain(&bytes.Buffer{}, b, false)).To(Succeed())

		b.exec.End()
		Expect(b.recorder.ListTables()).To(ContainElements(
			recording.AuxTable, recording.TrainingTable, recording.ExecTable))
		Expect(b.recorder.Close()).To(Succeed())

		_, err = os.Stat(cfg.RecordPath + ".sqlite3")
		Expect(err).ToNot(HaveOccurred())
	})

	It("should reject an unknown recorder", func() {
		cfg := quietConfig()
		cfg.Recorder = "tape"

		_, err := buildBench(cfg, config.Topology{})
		Expect(err).To(MatchError(dp.ErrInvalidArgument))
	})

	It("should monitor every session component", func() {
		b, err := buildBench(quietConfig(), config.Topology{})
		Expect(err).ToNot(HaveOccurred())

		m := newMonitor(b)
		bar := m.CreateProgressBar("Bring-up", 2)
		Expect(bringUp(&bytes.Buffer{}, b, bar)).To(Succeed())
		finished, running, total := bar.Progress()
		Expect(finished).To(Equal(total))
		Expect(running).To(BeZero())
	})
})

var _ = Describe("root command", func() {
	It("should print a topology that builds", func() {
		out := &bytes.Buffer{}
		rootCmd.SetOut(out)
		rootCmd.SetArgs([]string{"topology"})
		DeferCleanup(func() { rootCmd.SetOut(nil) })

		Expect(rootCmd.Execute()).To(Succeed())

		topo, err := config.ParseTopology(out.Bytes())
		Expect(err).ToNot(HaveOccurred())
		Expect(topo.Branch.Ports).To(HaveLen(3))

		_, err = topo.Build()
		Expect(err).ToNot(HaveOccurred())
	})

	It("should train the link of a topology file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "topology.yaml")
		data, err := exampleTopology().Marshal()
		Expect(err).ToNot(HaveOccurred())
		Expect(os.WriteFile(path, data, 0o600)).To(Succeed())

		out := &bytes.Buffer{}
		rootCmd.SetOut(out)
		rootCmd.SetArgs([]string{"train",
			"--topology", path, "--log-level", "error", "--recorder", "none"})
		DeferCleanup(func() { rootCmd.SetOut(nil) })

		Expect(rootCmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("link trained"))
	})
})
