package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/huddlechat/huddle/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Peer-to-peer video rooms with chat, straight from the terminal",
	Long: `Huddle connects small groups into a full-mesh WebRTC session. A
lightweight relay exchanges the connection-setup messages; media and chat
flow directly between peers.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
