// Package cmd implements the bugrd command-line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DigiGoon/bugrd/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "bugrd",
	Short: "Privileged diagnostic-capture service",
	Long: `Bugrd captures diagnostic bundles ("bug reports") on behalf of a
requesting caller. A capture runs one session at a time, streams progress
back to the caller, and only shares the produced artifacts after the user
approves within a consent window. Captures whose consent window expires are
kept in a local spool for manual retrieval.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/bugrd/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/bugrd")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BUGRD")
	// Replace dots with underscores for nested keys in env vars
	// e.g., BUGRD_CONSENT_TIMEOUT_SECONDS for consent.timeout_seconds
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
