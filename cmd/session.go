package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/huddlemesh/huddle/internal/config"
	"github.com/huddlemesh/huddle/internal/media"
	"github.com/huddlemesh/huddle/internal/peer"
	"github.com/huddlemesh/huddle/internal/room"
	"github.com/huddlemesh/huddle/internal/signaling"
	"github.com/huddlemesh/huddle/internal/ui"
	"github.com/huddlemesh/huddle/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagDomain   string
	flagName     string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagInsecure bool
)

func registerSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagDomain, "domain", "", "Meeting service domain")
	cmd.Flags().StringVar(&flagName, "name", "", "Display name announced to the room")
	cmd.Flags().StringVar(&flagSTUN, "stun", "", "Custom STUN server URL")
	cmd.Flags().StringVar(&flagTURN, "turn", "", "Custom TURN server URL")
	cmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN server username")
	cmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN server password")
	cmd.Flags().BoolVar(&flagRelay, "relay", false, "Force TURN relay for all media")
	cmd.Flags().BoolVar(&flagInsecure, "insecure", false, "Use ws/http instead of wss/https")
}

func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Domain:      flagDomain,
		DisplayName: flagName,
		STUNServer:  flagSTUN,
		TURNServer:  flagTURN,
		TURNUser:    flagTURNUser,
		TURNPass:    flagTURNPass,
		ForceRelay:  flagRelay,
		Insecure:    flagInsecure,
	})
	if err != nil {
		return nil, err
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// runMeeting wires a session against the configured relay and runs the
// meeting UI until the participant leaves.
func runMeeting(ctx context.Context, cfg *config.Config, roomID string, role room.Role) error {
	wsURL := fmt.Sprintf("%s?room=%s", cfg.WebSocketURL, roomID)
	if role == room.RoleHost {
		wsURL += "&host=1"
	}

	session := room.NewSession(room.Options{
		RoomID:      roomID,
		DisplayName: cfg.DisplayName,
		Role:        role,
		Version:     version.Version,
		Channel:     signaling.NewClient(wsURL),
		Media:       media.NewController(&media.SyntheticProvider{ToneAmplitude: 0.6}),
		Factory:     peer.NewPionFactory(cfg),
	})

	spinner := ui.NewConnectionSpinner("Connecting to the room...")
	spinner.Start()
	if err := session.Start(ctx); err != nil {
		spinner.Error("Could not join the room")
		return err
	}
	spinner.Stop()

	if err := ui.RunMeeting(session); err != nil {
		session.Leave()
		return err
	}

	session.Leave()
	<-session.Done()

	if err := session.Err(); err != nil {
		if errors.Is(err, room.ErrAdmissionRejected) {
			ui.PrintWarning("The host declined your request to join.")
			return nil
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
