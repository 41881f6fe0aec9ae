package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/sarvesh-official/lumo/internal/chat"
	"github.com/sarvesh-official/lumo/internal/reconcile"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// printTurn renders streamed turn events for a terminal.
func printTurn(ev chat.TurnEvent) {
	switch ev.Type {
	case chat.EventTextDelta:
		fmt.Print(ev.Text)
	case chat.EventToolCall:
		fmt.Printf("\n[running %s]\n", ev.Tool)
	case chat.EventFinish:
		fmt.Println()
	}
}

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Open a session and chat; creates the session on first use",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			message := strings.Join(args, " ")
			if sessionID == "" {
				sessionID = ulid.Make().String()
				fmt.Fprintf(os.Stderr, "session %s\n", sessionID)
			}

			r := reconcile.New(c)
			res, err := r.Open(cmd.Context(), sessionID, message, printTurn)
			if err != nil {
				return err
			}
			for _, m := range res.Messages {
				fmt.Printf("%s: %s\n", m.Role, m.Text())
			}
			if res.Created || message == "" {
				return nil
			}
			// The session already existed, so the message was not a seed.
			// Send it as an ordinary turn.
			return c.Turn(cmd.Context(), res.SessionID, []types.Message{chat.NewUserMessage(message)}, printTurn)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to open (default: new session)")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List your sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			sessions, err := c.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%s  %s  %s\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Title)
			}
			return nil
		},
	}
}

func newCardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cards <sessionID>",
		Short: "Show flashcards generated in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			cards, err := c.Cards(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				fmt.Println("no flashcards")
				return nil
			}
			for i, card := range cards {
				fmt.Printf("%d. Q: %s\n   A: %s\n", i+1, card.Question, card.Answer)
			}
			return nil
		},
	}
}

func newTitleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "title <message>",
		Short: "Derive a short session title from a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			title, err := c.SynthesizeTitle(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(title)
			return nil
		},
	}
}
