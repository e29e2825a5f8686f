package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/huddlechat/huddle/internal/config"
	"github.com/huddlechat/huddle/internal/mesh"
	"github.com/huddlechat/huddle/internal/session"
	"github.com/huddlechat/huddle/internal/ui"
)

var (
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagMaxPeers int
)

var joinCmd = &cobra.Command{
	Use:     "join <room>",
	Aliases: []string{"j"},
	Short:   "Join a room and chat with its peers",
	Long: `Join a named room on the signaling relay. Peers already present are
meshed automatically; chat lines are broadcast to every connected peer.

Examples:
  huddle join lobby
  huddle join --server ws://relay.example.com:3000 standup`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(room string) error {
	cfg, err := config.Load(config.Options{
		ServerURL:  flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		MaxPeers:   flagMaxPeers,
	})
	if err != nil {
		return err
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	defer stopSpinner()

	client := session.NewClient(cfg.ServerURL)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	stopSpinner()

	ctrl := session.NewController(client, mesh.Config{
		ICEServers: iceServers(cfg),
		MaxPeers:   cfg.MaxPeers,
		Log:        slog.Default(),
	}, room)

	start := time.Now()
	go ctrl.Run()

	stats, err := ui.RunChat(room, ctrl.Events(), ctrl.Broadcast)
	ctrl.Close()
	if err != nil {
		return err
	}

	fmt.Println()
	ui.RenderSessionSummary(ui.SessionSummary{
		Room:             room,
		Duration:         time.Since(start),
		PeersSeen:        stats.PeersSeen,
		MessagesSent:     stats.MessagesSent,
		MessagesReceived: stats.MessagesReceived,
	})
	return nil
}

// iceServers assembles the pion ICE server list from config.
func iceServers(cfg *config.Config) []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turn := cfg.GetTURNServers(); turn != nil {
		username, password := cfg.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}
	return servers
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagServer, "server", "S", "", "Signaling relay URL")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().IntVarP(&flagMaxPeers, "max-peers", "m", 0, "Local peer-link bound")
}
