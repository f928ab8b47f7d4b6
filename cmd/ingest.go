package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/olusolaa/infra-deployer/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Runs the vehicle market value pipeline against the provisioned buckets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.Bootstrap(cmd.Context(), viper.GetViper())
		if err != nil {
			printUserFacing(err)
			return err
		}
		if err := application.RunIngest(cmd.Context()); err != nil {
			printUserFacing(err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
