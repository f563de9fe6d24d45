package main

import (
	"os"

	"github.com/ALT-F4-LLC/lp2jira/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
