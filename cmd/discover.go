package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/dplink"
	"github.com/sarchlab/dplink/topology"
)

var streamPbns []int

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the MST topology.",
	Long: "`discover` trains the link, enables MST and lists the branch " +
		"and sink devices found. With --pbn, one stream per value is " +
		"allocated to the sinks in display order.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := newBench(cmd)
		if err != nil {
			return err
		}

		return runDiscover(cmd.OutOrStdout(), b, streamPbns)
	},
}

func init() {
	discoverCmd.Flags().IntSliceVar(&streamPbns, "pbn", nil,
		"payload bandwidth numbers of the streams to allocate")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(w io.Writer, b *bench, pbns []int) error {
	if err := b.session.EstablishLink(); err != nil {
		failColor.Fprintf(w, "link training failed: %v\n", err)
		return err
	}

	mstErr := b.session.StartMst()

	mgr := b.session.Topology()
	if _, ok := mgr.Root(); !ok {
		failColor.Fprintf(w, "topology discovery failed: %v\n", mstErr)
		return mstErr
	}

	renderNodes(w, mgr)

	if mstErr != nil {
		failColor.Fprintf(w, "discovery incomplete: %v\n", mstErr)
		return mstErr
	}

	okColor.Fprintf(w, "%d node(s), %d sink(s)\n",
		len(mgr.Nodes()), mgr.NumSinks())

	if len(pbns) == 0 {
		return nil
	}

	return allocate(w, b, pbns)
}

func renderNodes(w io.Writer, mgr *topology.Manager) {
	sinkIndex := map[string]int{}
	for i, s := range mgr.Sinks() {
		sinkIndex[s.Target.String()] = i
	}

	rows := [][]string{}
	for _, n := range mgr.Nodes() {
		kind := "sink"
		if n.IsBranch() {
			kind = "branch"
		}

		sink := "-"
		if i, ok := sinkIndex[n.Target.String()]; ok {
			sink = strconv.Itoa(i)
		}

		rows = append(rows, []string{
			n.Target.String(),
			kind,
			strconv.Itoa(int(n.PortNumber)),
			n.GUID.String(),
			strconv.FormatBool(n.MsgCapable),
			sink,
		})
	}

	table := newTable(w)
	table.SetHeader([]string{"ADDRESS", "KIND", "PORT", "GUID", "MSG", "SINK"})
	table.AppendBulk(rows)
	table.Render()
}

func allocate(w io.Writer, b *bench, pbns []int) error {
	reqs := make([]dplink.StreamRequest, 0, len(pbns))
	for i, pbn := range pbns {
		if pbn <= 0 || pbn > 0xFFFF {
			return fmt.Errorf("pbn %d out of range", pbn)
		}

		reqs = append(reqs, dplink.StreamRequest{Sink: i, PBN: uint16(pbn)})
	}

	if err := b.session.AllocateStreams(reqs...); err != nil {
		failColor.Fprintf(w, "stream allocation failed: %v\n", err)
		return err
	}

	table := b.session.Topology().PayloadTable()

	rows := [][]string{}
	for i := range reqs {
		vc := uint8(i + 1)
		rows = append(rows, []string{
			strconv.Itoa(int(vc)),
			strconv.Itoa(reqs[i].Sink),
			strconv.Itoa(int(reqs[i].PBN)),
			strconv.Itoa(table.Slots(vc)),
		})
	}

	t := newTable(w)
	t.SetHeader([]string{"STREAM", "SINK", "PBN", "SLOTS"})
	t.AppendBulk(rows)
	t.Render()

	okColor.Fprintf(w, "%d slot(s) free\n", table.Free())

	return nil
}
