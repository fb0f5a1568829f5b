package main

import (
	"log"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/sofiapulse/pulse/pkg/commands"
	"github.com/sofiapulse/pulse/pkg/configuration"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	root := &cobra.Command{
		Use:           "pulse",
		Short:         "Sofia Pulse normalization and aggregation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(commands.NewPulseCommands()...)

	if err := root.Execute(); err != nil {
		configuration.Use().Unload()
		log.Println(err)
		os.Exit(1)
	}
	configuration.Use().Unload()
}
