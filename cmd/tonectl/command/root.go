package command

// root.go defines the root command for tonectl and its global flags.

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var relayURL string // Global flag for the relay WebSocket URL

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tonectl",
	Short: "tonectl - terminal client for the tone relay",
	Long: `tonectl joins a tone relay from the terminal. It can:
- Listen to the tones other clients start and stop
- Play a tone that browser clients hear

Use "tonectl [command] --help" to see the flags of each command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&relayURL, "url", "ws://localhost:3001/", "relay WebSocket URL")
}
