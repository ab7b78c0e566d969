package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soypete/calbot/pkg/webchat"
)

// runServe starts the browser chat shell.
func runServe(cmd *cobra.Command) error {
	a, err := buildApp(cmd, true)
	if err != nil {
		return err
	}

	port := a.cfg.Server.Port
	if override, _ := cmd.Flags().GetInt("port"); override != 0 {
		port = override
	}

	server := webchat.NewServer(a.newSession, a.adapter, a.cfg.Attendee.Email, a.log)
	fmt.Printf("calbot web shell on http://localhost:%d\n", port)
	return server.ListenAndServe(fmt.Sprintf(":%d", port))
}
