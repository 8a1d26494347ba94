// Package main provides a CLI for inspecting and running eager-load queries.
//
// The CLI supports:
//   - compile: print the SQL and parameters of a query file without a database
//   - run: execute a query file and print the nested records as JSON
//   - count: execute the count form of a query file
//   - explain: print the database execution plan of a query file
//   - schema: list the entities and relations of the schema file
//   - config show: print the effective configuration
//
// Configuration is read from eager.yaml (searched upwards from the working
// directory), EAGER_* environment variables and a .env file.
//
// Usage:
//
//	eager [flags] <command> <query.yaml>
package main

import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	Execute()
}
