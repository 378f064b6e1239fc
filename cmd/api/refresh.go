package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshTrackingCmd = &cobra.Command{
	Use:   "refresh-tracking",
	Short: "Pull tracking once for every shipment that is still in transit",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApplication(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.close()

		summary, err := app.orchestrator.RefreshActiveShipments(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "shipments: %d\nstatus changed: %d\nevents added: %d\nfailed: %d\n",
			summary.Total, summary.StatusChanged, summary.EventsAdded, summary.Failed)
		return nil
	},
}
