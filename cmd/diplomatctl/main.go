package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "diplomatctl",
		Short: "Operator CLI for the diplomat game server",
		Long: `diplomatctl talks to a running diplomatd over its HTTP API.

The server URL and bearer token come from --url/--token, the
DIPLOMAT_URL/DIPLOMAT_TOKEN environment variables, or a .env file.
Get a token from the auth endpoints (e.g. GET /auth/dev?name=you with
DEV_MODE=true on the server).

Examples:
  diplomatctl games list
  diplomatctl games create "Western Front"
  diplomatctl games join 4f1c... --power france
  diplomatctl games start 4f1c...
  diplomatctl orders submit 4f1c... orders.txt
  diplomatctl state 4f1c...
  diplomatctl deadline set 4f1c... 48h
  diplomatctl process 4f1c...`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "Server base URL (default $DIPLOMAT_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Bearer token (default $DIPLOMAT_TOKEN)")

	rootCmd.AddCommand(newGamesCommand())
	rootCmd.AddCommand(newOrdersCommand())
	rootCmd.AddCommand(newStateCommand())
	rootCmd.AddCommand(newProcessCommand())
	rootCmd.AddCommand(newDeadlineCommand())

	return rootCmd
}

func main() {
	godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
