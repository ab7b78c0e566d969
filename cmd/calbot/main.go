// calbot is a conversational scheduling assistant backed by Cal.com.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:   "calbot",
		Short: "Chat-based meeting scheduler",
		Long: `calbot books, lists, cancels, and reschedules Cal.com meetings
through a conversation. Run with no arguments for the terminal chat, or
"calbot serve" for the browser shell.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path (default: .calbot.json in cwd or home)")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser chat shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")

	bookingsCmd := &cobra.Command{
		Use:   "bookings",
		Short: "List your bookings without starting a chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookings(cmd)
		},
	}

	eventTypesCmd := &cobra.Command{
		Use:   "event-types",
		Short: "List the bookable meeting categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEventTypes(cmd)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("calbot version %s\n", version)
		},
	}

	root.AddCommand(chatCmd, serveCmd, bookingsCmd, eventTypesCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
