// Command vhal-log views and analyzes HAL protocol log files.
//
// Log files are written by vhal-daemon when it runs with -protocol-log.
//
// Usage:
//
//	vhal-log <command> [flags] <file.vlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View every event touching the vehicle speed
//	vhal-log view -prop PERF_VEHICLE_SPEED hal.vlog
//
//	# View only what clients received
//	vhal-log view -layer client -direction out hal.vlog
//
//	# Keep one client's events
//	vhal-log filter -client 6f1c2b0e-... -o client.vlog hal.vlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/openvhal/vhal-go/cmd/vhal-log/commands"
)

const usage = `vhal-log - VHAL Protocol Log Analyzer

Usage:
  vhal-log <command> [flags] <file.vlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "vhal-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "vhal-log %s - %s\n\nUsage:\n  vhal-log %s [flags] <file.vlog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func selectionFlags(fs *flag.FlagSet) *commands.Selection {
	sel := &commands.Selection{}
	fs.StringVar(&sel.ClientID, "client", "", "Filter by client ID")
	fs.StringVar(&sel.Layer, "layer", "", "Filter by layer (hardware, manager, client)")
	fs.StringVar(&sel.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&sel.Category, "category", "", "Filter by category (property, subscription, request, state, error)")
	fs.StringVar(&sel.Prop, "prop", "", "Filter by property name or ID")
	fs.StringVar(&sel.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&sel.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return sel
}

// logPath parses args and returns the single positional log file path.
func logPath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", "View log file in human-readable format")
	sel := selectionFlags(fs)
	path := logPath(fs, args)

	if err := commands.RunView(path, *sel, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export log file to JSONL or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	sel := selectionFlags(fs)
	path := logPath(fs, args)

	if err := commands.RunExport(path, *format, *output, *sel); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter log file and write to new file")
	output := fs.String("o", "", "Output file (required)")
	sel := selectionFlags(fs)
	path := logPath(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, *output, *sel)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the log file")
	path := logPath(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
