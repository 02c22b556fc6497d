package command

import (
	"fmt"
	"os"
	"os/signal"

	c "tonerelay/cmd/tonectl/command/client"

	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print the tones other clients play",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		client, err := c.Dial(ctx, relayURL)
		if err != nil {
			return err
		}

		fmt.Printf("Connected to %s, press Ctrl+C to quit\n", relayURL)
		return client.Listen(ctx, c.PrintEvent)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
