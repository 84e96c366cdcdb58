package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvestlink/traceledger/internal/client"
	"github.com/harvestlink/traceledger/internal/ui"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool
	actor      string

	api client.TraceClient
)

func defaultActor() string {
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultServer() string {
	if s := os.Getenv("TRACE_SERVER"); s != "" {
		return s
	}
	if s := activeRemoteURL(); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if t := os.Getenv("TRACE_TOKEN"); t != "" {
		return t
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:   "vt",
	Short: "CLI client for the traceability ledger",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		api = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if api != nil {
			api.Close()
		}
	},
}

func init() {
	if !ui.ShouldUseColor() {
		forceNoColor()
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServer(), "ledger server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for authentication")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor ref for recorded events")

	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
