package command

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	c "tonerelay/cmd/tonectl/command/client"
	"tonerelay/internal/tone"

	"github.com/spf13/cobra"
)

var (
	playFrequency float64       // Hz, 0 means pick one at random
	playDuration  time.Duration // how long the tone is held
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a tone for every connected client",
	Long: `Sends a start event, holds the tone for --duration (or until Ctrl+C), then
sends the matching stop event. Without --frequency a random one in 400-800Hz is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		frequency := playFrequency
		if frequency == 0 {
			frequency = tone.RandomFrequency()
		}
		if frequency < 0 {
			return fmt.Errorf("--frequency must be positive")
		}
		if playDuration <= 0 {
			return fmt.Errorf("--duration must be positive")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		client, err := c.Dial(ctx, relayURL)
		if err != nil {
			return err
		}
		defer client.Close()

		return client.Play(ctx, frequency, playDuration, c.PrintEvent)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Float64VarP(&playFrequency, "frequency", "f", 0, "tone frequency in Hz (random if omitted)")
	playCmd.Flags().DurationVarP(&playDuration, "duration", "d", time.Second, "how long to hold the tone")
}
