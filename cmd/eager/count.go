package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coregx/eager/internal/cli"
)

var countCmd = &cobra.Command{
	Use:   "count <query.yaml>",
	Short: "Count the root records a query file matches",
	Long: `Count the distinct root records a query file matches. Only required or
filtered includes and their ancestors affect the result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, qf, err := loadQuery(args)
		if err != nil {
			return err
		}
		opts, err := qf.CountOptions()
		if err != nil {
			return cli.QueryError("parsing query file", err)
		}

		db, err := openDB(cmd, reg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		n, err := db.CountWith(opts).WithContext(cmd.Context()).Value()
		if err != nil {
			return cli.QueryError("running count", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}
