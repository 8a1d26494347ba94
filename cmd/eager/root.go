package main

import (
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/coregx/eager/internal/cli"
	"github.com/coregx/eager/internal/core"
	"github.com/coregx/eager/internal/schema"
)

var appFs = afero.NewOsFs()

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string

	// Persistent flags
	cfgFile     string
	schemaFlag  string
	driverFlag  string
	dsnFlag     string
	dialectFlag string
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:   "eager",
	Short: "Compile and run eager-load queries",
	Long: `eager - single-statement eager loading

eager compiles a query over a YAML schema, including nested relations, into
one SQL SELECT with joins and folds the result rows back into nested records.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		dir, err := os.Getwd()
		if err != nil {
			return cli.ConfigError("getting working directory", err)
		}
		cfg, configPath, err = cli.LoadConfig(appFs, cfgFile, dir)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		cfg.Schema = resolveString(schemaFlag, cfg.Schema)
		cfg.Database.Driver = resolveString(driverFlag, cfg.Database.Driver)
		cfg.Database.DSN = resolveString(dsnFlag, cfg.Database.DSN)
		cfg.Database.Dialect = resolveString(dialectFlag, cfg.Database.Dialect)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command group IDs
const (
	groupQuery   = "query"
	groupUtility = "utility"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover eager.yaml)")
	rootCmd.PersistentFlags().StringVar(&schemaFlag, "schema", "", "schema file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "database driver: mysql, postgres, sqlite3")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "database connection string")
	rootCmd.PersistentFlags().StringVar(&dialectFlag, "dialect", "", "SQL dialect when it differs from the driver")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print only results")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupQuery, Title: "Query:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	compileCmd.GroupID = groupQuery
	runCmd.GroupID = groupQuery
	countCmd.GroupID = groupQuery
	explainCmd.GroupID = groupQuery
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(explainCmd)

	schemaCmd.GroupID = groupUtility
	checkCmd.GroupID = groupUtility
	configCmd.GroupID = groupUtility
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadQuery reads the schema and the query file named by args[0].
func loadQuery(args []string) (*schema.Registry, *cli.QueryFile, error) {
	reg, err := cli.LoadSchema(appFs, cfg)
	if err != nil {
		return nil, nil, err
	}
	q, err := cli.LoadQueryFile(appFs, args[0])
	if err != nil {
		return nil, nil, cli.QueryError("reading query file", err)
	}
	return reg, q, nil
}

// openDB connects with query logging on the command's stderr.
func openDB(cmd *cobra.Command, reg *schema.Registry) (*core.DB, error) {
	return cli.OpenDB(cfg, reg, cmd.ErrOrStderr())
}
