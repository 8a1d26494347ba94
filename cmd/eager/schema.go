package main

import (
	"github.com/spf13/cobra"

	"github.com/coregx/eager/internal/cli"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "List entities and relations",
	Long:  `Load the schema file and list every entity with its attributes and relations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := cli.LoadSchema(appFs, cfg)
		if err != nil {
			return err
		}
		cli.PrintSchema(cmd.OutOrStdout(), reg)
		return nil
	},
}
