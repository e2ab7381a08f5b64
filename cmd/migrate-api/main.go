package main

import (
	"os"

	"go-migrate-pipeline/cmd/migrate/commands"
)

func main() {
	cmd := commands.ServeCmd
	cmd.Use = "migrate-api"
	cmd.SilenceUsage = true
	commands.AddGlobalFlags(cmd)
	os.Exit(commands.Execute(cmd))
}
