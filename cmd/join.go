package cmd

import (
	"fmt"

	"github.com/huddlemesh/huddle/internal/directory"
	"github.com/huddlemesh/huddle/internal/room"
	"github.com/huddlemesh/huddle/internal/ui"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join an existing meeting room",
	Long: `Join a meeting room by its identifier. You wait in the waiting room
until the host lets you in.

Examples:
  huddle join 7c9e6679-7425-40de-944b-e07fc1f90ae7 --name "Ana"
  huddle join <room-id> --name "Ana" --domain meet.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinMeeting(cmd, args[0])
	},
}

func joinMeeting(cmd *cobra.Command, roomID string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	spinner := ui.NewSimpleSpinner("Checking room...")
	spinner.Start()
	if err := directory.NewClient(cfg.DirectoryURL).JoinMeeting(cmd.Context(), roomID, cfg.DisplayName); err != nil {
		spinner.Error("Could not join the room")
		return fmt.Errorf("join meeting: %w", err)
	}
	spinner.Stop()

	return runMeeting(cmd.Context(), cfg, roomID, room.RoleGuest)
}

func init() {
	registerSessionFlags(joinCmd)
	rootCmd.AddCommand(joinCmd)
}
