package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/dplink/config"
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Print an example topology description.",
	Long: "`topology` prints a receiver tree in the format accepted by " +
		"--topology: a branch driving a two-tile display and a second " +
		"branch with one more sink.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := exampleTopology().Marshal()
		if err != nil {
			return err
		}

		_, err = cmd.OutOrStdout().Write(out)

		return err
	},
}

func init() {
	rootCmd.AddCommand(topologyCmd)
}

func tile(column uint8) *config.RemoteSinkSpec {
	return &config.RemoteSinkSpec{
		EDID: &config.EDIDSpec{
			Product: 0x4B1D,
			Serial:  42,
			Tile:    &config.TileSpec{Columns: 2, Rows: 1, Column: column},
		},
	}
}

func exampleTopology() config.Topology {
	return config.Topology{
		Sink: config.SinkSpec{
			MaxLinkRate: "5.4",
			MaxLanes:    4,
		},
		Branch: &config.BranchSpec{
			Ports: []config.PortSpec{
				{Number: 1, Sink: tile(1)},
				{Number: 2, Sink: tile(0)},
				{Number: 3, Branch: &config.BranchSpec{
					Ports: []config.PortSpec{
						{Number: 1, Sink: &config.RemoteSinkSpec{
							EDID: &config.EDIDSpec{Product: 0x1001, Serial: 7},
						}},
					},
				}},
			},
		},
	}
}
