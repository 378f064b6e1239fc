package main

import (
	"fmt"

	"carrier-engine/internal/seed"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Upsert carriers, rate cards and rules from a YAML or JSON file",
	Long: `Carriers are matched by code and rules by their natural key, so the same file
can be applied repeatedly. Rules reference carriers by code.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := seed.Load(args[0])
		if err != nil {
			return err
		}

		app, err := buildApplication(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.close()

		sum, err := seed.Apply(cmd.Context(), file, app.seedDeps())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "carriers: %d\ncredentials: %d\nzones: %d\nrates: %d\nchannel rules: %d\nshipping rules: %d\npincode rules: %d\n",
			sum.Carriers, sum.Credentials, sum.Zones, sum.Rates, sum.ChannelRules, sum.ShippingRules, sum.PincodeRules)
		return nil
	},
}
