package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/soypete/calbot/pkg/calcom"
)

// runChat runs the terminal REPL.
func runChat(cmd *cobra.Command) error {
	a, err := buildApp(cmd, true)
	if err != nil {
		return err
	}
	session := a.newSession()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     historyFilePath(),
		HistoryLimit:    1000,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("calbot (%s) — type a request, /bookings, /reset, or /quit\n", a.backend.ModelName())

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch input {
		case "/quit", "/exit":
			return nil
		case "/reset":
			session.Reset()
			fmt.Println("conversation cleared")
			continue
		case "/bookings":
			printBookings(session.ListBookingsForDisplay(contextOrBackground(cmd)))
			continue
		}

		reply, err := session.SendUserMessage(contextOrBackground(cmd), input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("\ncalbot> %s\n\n", reply)
	}
}

func printBookings(res calcom.BookingsResult) {
	if !res.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", res.Error)
		if res.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", res.Suggestion)
		}
		return
	}
	if res.Count == 0 {
		fmt.Println("no bookings")
		return
	}
	for _, b := range res.Bookings {
		title := b.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %-12s %-22s %s (uid: %s)\n", b.Lifecycle, b.LocalTime, title, b.UID)
	}
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".calbot_history"
	}
	return filepath.Join(home, ".calbot_history")
}
