package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perun-emu/perun-go/internal/util"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "perun",
		Short: "Stream emulator frames to a presentation server",
		Long: `Perun is a point-to-point streaming link between an emulator core and a
presentation server. The feed command runs a CHIP-8 core and streams its
video output; the view command attaches as a presentation side and renders
incoming frames as ASCII art.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				util.EnableDebug()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		feedCmd(),
		viewCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
