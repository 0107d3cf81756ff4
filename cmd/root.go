package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"taptunes/server"
)

var rootCmd = &cobra.Command{
	Use:   "taptunes",
	Short: "TapTunes is an RFID-driven household jukebox.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting TapTunes server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
