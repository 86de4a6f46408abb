package cmd

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

var showAttempts bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the main link.",
	Long: "`train` reads the receiver capabilities and trains the main " +
		"link, falling back to lower rates and fewer lanes when allowed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := newBench(cmd)
		if err != nil {
			return err
		}

		return runTrain(cmd.OutOrStdout(), b, showAttempts)
	},
}

func init() {
	trainCmd.Flags().BoolVar(&showAttempts, "attempts", false,
		"list every rate and lane count the receiver saw")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(w io.Writer, b *bench, attempts bool) error {
	err := b.session.EstablishLink()
	if err != nil {
		failColor.Fprintf(w, "link training failed: %v\n", err)
	} else {
		lc := b.session.Trainer().Config()
		okColor.Fprintf(w, "link trained: %d lane(s) at %s\n",
			lc.LaneCount, lc.LinkRate)
		infoColor.Fprintf(w, "voltage swing %d, pre-emphasis %d\n",
			lc.VoltageSwing, lc.PreEmphasis)
	}

	if attempts {
		renderAttempts(w, b)
	}

	return err
}

func renderAttempts(w io.Writer, b *bench) {
	rows := [][]string{}
	for i, a := range b.sim.Sink().Attempts() {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			a.Rate.String(),
			strconv.Itoa(a.Lanes),
		})
	}

	table := newTable(w)
	table.SetHeader([]string{"#", "RATE", "LANES"})
	table.AppendBulk(rows)
	table.Render()
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	return table
}
