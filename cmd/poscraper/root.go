package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"poscraper/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "poscraper",
	Short: "Export purchase-order documents from the legacy web application",
	Long: `poscraper logs into the purchase-order web application once and walks a
range of document IDs, extracting the header fields and line items of each
document into one CSV or JSON lines file per document type.

Supported document types:
  - po_receive          purchase-order receive attachments
  - tl_receive          transfer-list receive attachments
  - inventory_handover  inventory handover details

A failing document is logged and skipped; the rest of the range is still
exported.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if verbose && !cmd.Flags().Changed("log-level") {
			logLevel = "debug"
		}
	},
}

// exitInterrupted is the conventional status for a run stopped by SIGINT
const exitInterrupted = 130

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := exitCode(err)
		if code != exitInterrupted {
			ui.PrintError("Error", err)
		}
		os.Exit(code)
	}
}

// exitCode tells an interrupted run apart from a failed one
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .poscraper.yaml or ~/.config/poscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and a line per failed document")

	rootCmd.SetVersionTemplate(`poscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags returns the root flags in the form config.MergeCommandLineFlags expects
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}
