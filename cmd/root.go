package cmd

import (
	"os"
	"os/signal"

	"github.com/huddlemesh/huddle/internal/ui"
	"github.com/huddlemesh/huddle/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "huddle",
	Short:   "Peer-to-peer video meetings in your terminal, built on WebRTC mesh connections",
	Long:    `Huddle is a command-line client for multi-party video meetings over direct WebRTC connections. A host creates a room and admits guests from a waiting room; every admitted participant connects to every other one, with no media server in between.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
