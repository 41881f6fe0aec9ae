// Package main provides the lumo command line client.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sarvesh-official/lumo/pkg/client"
)

var (
	serverURL string
	authToken string
)

func newClient() (*client.Client, error) {
	if authToken == "" {
		return nil, fmt.Errorf("no auth token: pass --token or set LUMO_TOKEN")
	}
	return client.New(serverURL, authToken), nil
}

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "lumo",
		Short:         "Chat with a science tutor that can generate flashcards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("LUMO_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Lumo server URL")
	root.PersistentFlags().StringVar(&authToken, "token", os.Getenv("LUMO_TOKEN"), "Bearer token")

	root.AddCommand(newChatCmd(), newSessionsCmd(), newCardsCmd(), newTitleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
