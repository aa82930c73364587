package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "botsocket",
	Short: "botsocket is a chat-bot helper built on device registration and websocket push",
	Long: `botsocket keeps a device registration alive on the messaging platform,
listens on the device's websocket for message-posted notifications, resolves
them into full messages over the REST API, and dispatches them to registered
command handlers. Handler replies are posted back into the originating room.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}
