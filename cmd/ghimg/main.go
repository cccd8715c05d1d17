package main

import (
	"os"

	"github.com/dl-alexandre/ghimg/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
