package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"poscraper/pkg/config"
	"poscraper/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage poscraper configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (POSCRAPER_*) and .env files
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration to .poscraper.yaml in the current
directory, or to the path given with --config.`,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging every source. The password is masked.`,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".poscraper.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration written to " + path)
	fmt.Println("\nSet the site login with 'poscraper auth login' or POSCRAPER_USERNAME / POSCRAPER_PASSWORD.")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return err
	}

	if cfg.Site.Password != "" {
		cfg.Site.Password = "********"
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	_, err := config.Load(configFile, globalFlags())
	if err == nil {
		ui.PrintSuccess("Configuration is valid")
		return nil
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			ui.PrintError("  " + e.Error())
		}
	}
	return err
}
