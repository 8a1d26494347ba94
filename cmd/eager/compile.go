package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coregx/eager/internal/cli"
	"github.com/coregx/eager/internal/core"
)

var (
	compileCount   bool
	compileColumns bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <query.yaml>",
	Short: "Print the SQL of a query file",
	Long:  `Compile a query file into SQL and bound parameters. No database connection is made.`,
	Example: `  # Print the find query
  eager compile queries/authors.yaml

  # Print the count query and compile for PostgreSQL
  eager compile --count --dialect postgres queries/authors.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, qf, err := loadQuery(args)
		if err != nil {
			return err
		}
		compiler, err := cfg.NewCompiler(reg)
		if err != nil {
			return err
		}

		var q *core.CompiledQuery
		if compileCount {
			opts, err := qf.CountOptions()
			if err != nil {
				return cli.QueryError("parsing query file", err)
			}
			q, err = compiler.CompileCount(opts)
			if err != nil {
				return cli.QueryError("compiling count", err)
			}
		} else {
			opts, err := qf.FindOptions()
			if err != nil {
				return cli.QueryError("parsing query file", err)
			}
			q, err = compiler.CompileFind(opts)
			if err != nil {
				return cli.QueryError("compiling find", err)
			}
		}

		out := cmd.OutOrStdout()
		cli.PrintQuery(out, q, cfg.Sanitizer())
		if compileColumns && !q.IsCount() {
			fmt.Fprintln(out)
			cli.PrintColumns(out, q.Tree())
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().BoolVar(&compileCount, "count", false, "compile the count form")
	compileCmd.Flags().BoolVar(&compileColumns, "columns", false, "print the result column layout")
}
