// bindlog - BIND query log ingestion tool
//
// bindlog parses BIND query logs into structured records and stores them
// in SQLite, JSON Lines or memory.
package main

import (
	"os"

	"github.com/ccollicutt/bindlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
