package main

import (
	"github.com/spf13/cobra"

	"github.com/coregx/eager/internal/cli"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the connection and every entity table",
	Long: `Ping the database, then read one row of every entity in the schema file
with all of its declared attributes. Exits with the schema exit code when a
table or column is missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := cli.LoadSchema(appFs, cfg)
		if err != nil {
			return err
		}
		db, err := openDB(cmd, reg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		report := db.CheckHealth(cmd.Context())
		cli.PrintHealth(cmd.OutOrStdout(), report)
		switch {
		case report.Ping != nil:
			return cli.DBConnectError("pinging database", report.Ping)
		case !report.Healthy():
			return cli.SchemaError("schema does not match the database", report.Err())
		}
		return nil
	},
}
