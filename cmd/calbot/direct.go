package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// runBookings lists bookings directly, no model involved.
func runBookings(cmd *cobra.Command) error {
	a, err := buildApp(cmd, false)
	if err != nil {
		return err
	}
	res := a.adapter.ListBookings(contextOrBackground(cmd), a.cfg.Attendee.Email, "")
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	printBookings(res)
	return nil
}

// runEventTypes lists the bookable categories directly.
func runEventTypes(cmd *cobra.Command) error {
	a, err := buildApp(cmd, false)
	if err != nil {
		return err
	}
	res := a.adapter.ListEventTypes(contextOrBackground(cmd))
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	if res.Count == 0 {
		fmt.Println("no event types")
		return nil
	}
	for _, et := range res.EventTypes {
		fmt.Printf("  %4d  %-30s %3d min  (%s)\n", et.ID, et.Title, et.Length, et.Slug)
	}
	return nil
}
