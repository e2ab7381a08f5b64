package main

import (
	"os"

	"go-migrate-pipeline/cmd/migrate/commands"
)

func main() {
	os.Exit(commands.Execute(commands.Root()))
}
