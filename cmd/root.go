// Package cmd provides the command-line interface of dplink.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var (
	envFiles     []string
	topologyFile string
	logLevel     string
	recorderKind string
	recordPath   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dplink",
	Short: "dplink drives a DisplayPort transmitter against a simulated receiver.",
	Long: `dplink drives a DisplayPort transmitter against a simulated ` +
		`receiver tree. It can train the main link, discover MST ` +
		`topologies, allocate streams and serve a monitoring page.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&envFiles, "env", nil,
		"dotenv files to load before reading DPLINK_* variables")
	flags.StringVar(&topologyFile, "topology", "",
		"YAML file describing the simulated receiver tree")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&recorderKind, "recorder", "",
		"record link activity to none, sqlite or clickhouse")
	flags.StringVar(&recordPath, "record-path", "",
		"file name of the sqlite recording")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Exit handlers run before the process exits.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
