package main

import (
	"errors"
	"fmt"
	"os"

	"carrier-engine/internal/core/logger"
	ruleservice "carrier-engine/internal/features/rules/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importPincodesCmd = &cobra.Command{
	Use:   "import-pincodes <file.csv>",
	Short: "Upsert pincode rules from a CSV file",
	Long: `Reads rows of pincode,carrier_code,priority,supports_cod,supports_prepaid,delivery_days,notes.
The header row is optional. Existing manual rules for the same pincode and carrier are updated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		app, err := buildApplication(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.close()

		result, err := app.rules.ImportPincodeRules(cmd.Context(), f)
		if result != nil {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created: %d\nupdated: %d\nfailed: %d\n", result.Created, result.Updated, result.Failed)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  line %d: %s\n", e.Line, e.Message)
			}
		}
		if err != nil {
			if errors.Is(err, ruleservice.ErrMalformedCSV) {
				logger.Get().Warn("Pincode import stopped early", zap.Error(err))
			}
			return err
		}
		return nil
	},
}
