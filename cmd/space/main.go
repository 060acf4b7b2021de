package main

import (
	"os"

	"github.com/spacehq/space/internal/command"
)

func main() {
	err := command.Execute()
	os.Exit(command.ExitCode(err))
}
