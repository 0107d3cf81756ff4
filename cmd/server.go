package cmd

import (
	"github.com/spf13/cobra"

	"taptunes/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the TapTunes server",
	Long:  `Start the TapTunes HTTP server, serving the playback API and RFID endpoints`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
