package main

import (
	"github.com/spf13/cobra"

	"github.com/coregx/eager/internal/cli"
	"github.com/coregx/eager/internal/core"
)

var runOne bool

var runCmd = &cobra.Command{
	Use:   "run <query.yaml>",
	Short: "Run a query file and print the records",
	Long:  `Run a query file against the configured database and print the nested records as JSON.`,
	Example: `  # Run against MySQL
  EAGER_DATABASE_DSN='user:pass@tcp(localhost:3306)/library' eager run queries/authors.yaml

  # Fetch only the first root record
  eager run --one queries/authors.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, qf, err := loadQuery(args)
		if err != nil {
			return err
		}
		opts, err := qf.FindOptions()
		if err != nil {
			return cli.QueryError("parsing query file", err)
		}

		db, err := openDB(cmd, reg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		fq := db.FindWith(opts).WithContext(cmd.Context())
		var records []*core.Record
		if runOne {
			r, err := fq.One()
			if err != nil {
				return cli.QueryError("running query", err)
			}
			records = []*core.Record{r}
		} else {
			records, err = fq.All()
			if err != nil {
				return cli.QueryError("running query", err)
			}
		}
		return cli.PrintRecords(cmd.OutOrStdout(), records)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOne, "one", false, "return only the first root record")
}
