package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Banner printed at the start of a scrape
const Banner = `
  ┌─────────────────────────────────────────────┐
  │  poscraper · purchase-order document export │
  └─────────────────────────────────────────────┘
`

// Output is where the Print helpers write. Colors are disabled when it is
// not a terminal.
var (
	Output io.Writer = os.Stdout
	color            = term.IsTerminal(int(os.Stdout.Fd()))
)

// SetOutput redirects terminal output, enabling colors only for terminals
func SetOutput(w io.Writer) {
	Output = w
	f, ok := w.(*os.File)
	color = ok && term.IsTerminal(int(f.Fd()))
}

// SetColor forces colors on or off
func SetColor(enabled bool) {
	color = enabled
}

var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !color {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func PrintBanner() {
	fmt.Fprint(Output, Cyan(Banner))
}

// PrintError prints an error message in red, with an optional cause
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Red(msg))
	}
}

func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Yellow(msg))
	}
}

func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}
