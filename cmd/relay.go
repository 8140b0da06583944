package cmd

import (
	"fmt"
	"net/http"

	"github.com/huddlemesh/huddle/internal/signaling"
	"github.com/huddlemesh/huddle/internal/ui"
	"github.com/spf13/cobra"
)

var flagRelayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a local signaling relay and meeting directory",
	Long: `Run the signaling relay and meeting-directory API for local or
self-hosted meetings. Point clients at it with --domain and --insecure.

Example:
  huddle relay --addr :8080
  huddle host --name "Riya" --domain localhost:8080 --insecure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := signaling.NewServer(signaling.NewRelay())

		ui.PrintInfof("Relay listening on %s", flagRelayAddr)
		if err := http.ListenAndServe(flagRelayAddr, server.Handler()); err != nil {
			return fmt.Errorf("relay server: %w", err)
		}
		return nil
	},
}

func init() {
	relayCmd.Flags().StringVar(&flagRelayAddr, "addr", ":8080", "Listen address")
	rootCmd.AddCommand(relayCmd)
}
