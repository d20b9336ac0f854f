package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/motiondeck/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "motiondeck",
	Short: "A browsable deck of animation demos",
	Long: `motiondeck serves a catalog of animation demos, each available as a
motion (JS-driven) and a css (keyframe) implementation.

Quick Start:
  motiondeck serve                Start the deck at http://localhost:8080
  motiondeck list                 Print the catalog
  motiondeck validate             Check the manifest against the registered demos
  motiondeck resolve <group>      Show where a group id canonicalizes to

Configuration:
  .motiondeck.yml in the working directory, MOTIONDECK_CONFIG_FILE, or --config.
  Any key can be overridden with MOTIONDECK_<SECTION>_<KEY>, for example
  MOTIONDECK_SERVER_PORT=9000.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .motiondeck.yml, can also use MOTIONDECK_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("manifest", "", "manifest file (default is the built-in manifest)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("catalog.manifest", rootCmd.PersistentFlags().Lookup("manifest"))
}

// initConfig wires viper to the config file and the MOTIONDECK_ environment.
// A missing default file is fine; a missing explicit one is reported and the
// command exits.
func initConfig() {
	if err := config.Configure(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}
