package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coregx/eager/internal/cli"
	"github.com/coregx/eager/internal/core"
)

var explainCount bool

var explainCmd = &cobra.Command{
	Use:   "explain <query.yaml>",
	Short: "Show the execution plan of a query file",
	Long: `Ask the database for the execution plan of a query file without running it.
Joined tables read with a full scan are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, qf, err := loadQuery(args)
		if err != nil {
			return err
		}

		db, err := openDB(cmd, reg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		var q *core.CompiledQuery
		if explainCount {
			opts, err := qf.CountOptions()
			if err != nil {
				return cli.QueryError("parsing query file", err)
			}
			q, err = db.CountWith(opts).Build()
			if err != nil {
				return cli.QueryError("compiling count", err)
			}
		} else {
			opts, err := qf.FindOptions()
			if err != nil {
				return cli.QueryError("parsing query file", err)
			}
			q, err = db.FindWith(opts).Build()
			if err != nil {
				return cli.QueryError("compiling find", err)
			}
		}

		plan, err := db.Explain(cmd.Context(), q)
		if err != nil {
			return cli.QueryError("explaining query", err)
		}
		out := cmd.OutOrStdout()
		if !quiet {
			cli.PrintQuery(out, q, cfg.Sanitizer())
			fmt.Fprintln(out)
		}
		cli.PrintPlan(out, plan)
		return nil
	},
}

func init() {
	explainCmd.Flags().BoolVar(&explainCount, "count", false, "explain the count form")
}
