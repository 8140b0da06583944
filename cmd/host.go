package cmd

import (
	"fmt"

	"github.com/huddlemesh/huddle/internal/directory"
	"github.com/huddlemesh/huddle/internal/room"
	"github.com/huddlemesh/huddle/internal/ui"
	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"create"},
	Short:   "Create a room and host a meeting",
	Long: `Create a new meeting room and wait in it as the host. Guests who open
the room link land in a waiting room until you admit them.

Examples:
  huddle host --name "Riya"
  huddle host --name "Riya" --domain meet.example.com
  huddle host --name "Riya" --relay`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostMeeting(cmd)
	},
}

func hostMeeting(cmd *cobra.Command) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	spinner := ui.NewSimpleSpinner("Creating room...")
	spinner.Start()
	roomID, err := directory.NewClient(cfg.DirectoryURL).CreateMeeting(cmd.Context())
	if err != nil {
		spinner.Error("Could not create a room")
		return err
	}
	spinner.Stop()

	fmt.Println(ui.RoomBanner(roomID, cfg.GetRoomLink(roomID)))

	return runMeeting(cmd.Context(), cfg, roomID, room.RoleHost)
}

func init() {
	registerSessionFlags(hostCmd)
	rootCmd.AddCommand(hostCmd)
}
