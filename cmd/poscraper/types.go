package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"poscraper/pkg/extract"
	"poscraper/pkg/ui"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List supported document types",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, dt := range extract.Types() {
			ui.PrintHighlight(dt.Name)
			fmt.Printf("  %s\n", dt.Description)
			if len(dt.Aliases) > 0 {
				fmt.Printf("  %s %s\n", ui.Dim("aliases:"), strings.Join(dt.Aliases, ", "))
			}
			fmt.Printf("  %s %s\n", ui.Dim("url:"), dt.URL("<origin>", 123))
			fmt.Printf("  %s %s\n\n", ui.Dim("columns:"), strings.Join(dt.Columns(), ", "))
		}
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
