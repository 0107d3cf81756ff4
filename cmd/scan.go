package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var scanAddr string

var scanCmd = &cobra.Command{
	Use:   "scan [card-id]",
	Short: "Simulate an RFID scan against a running server",
	Long:  `Send a card id to a running TapTunes server as if an RFID reader had scanned it.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		body, err := json.Marshal(map[string]string{"cardId": args[0]})
		if err != nil {
			log.Fatalf("Could not encode request: %v", err)
		}

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Post(scanAddr+"/api/rfid/scan", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("Scan request failed: %v", err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			log.Fatalf("Could not read response: %v", err)
		}
		fmt.Printf("%s %s\n", resp.Status, payload)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanAddr, "addr", "http://localhost:3001", "base URL of the running server")
	rootCmd.AddCommand(scanCmd)
}
