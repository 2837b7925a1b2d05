// Command ngsi-trace views and analyzes protocol trace files.
//
// Trace files are written by any client configured with protocolLog.path,
// or by ngsi-listen with the -trace flag.
//
// Usage:
//
//	ngsi-trace <command> [flags] <file.ntrace>
//
// Commands:
//
//	view     View trace file in human-readable format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	ngsi-trace view client.ntrace
//
//	# View dispatch events of one subscription
//	ngsi-trace view -layer dispatch -subscription 5f0c... client.ntrace
//
//	# Everything that happened for one inbound request
//	ngsi-trace view -correlation 0f1e2d3c-... client.ntrace
//
//	# Show statistics
//	ngsi-trace stats client.ntrace
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ngsi-go/ngsi/cmd/ngsi-trace/commands"
)

const usage = `ngsi-trace - NGSI Protocol Trace Analyzer

Usage:
  ngsi-trace <command> [flags] <file.ntrace>

Commands:
  view     View trace file in human-readable format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "ngsi-trace <command> -help" for more information about a command.
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

func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.CorrelationID, "correlation", "", "Filter by correlation ID")
	fs.StringVar(&opts.SubscriptionID, "subscription", "", "Filter by subscription ID")
	fs.StringVar(&opts.EntityID, "entity", "", "Filter by entity ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, dispatch)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, state, error, drop)")
	return opts
}

func parseArgs(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
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
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ngsi-trace view - View trace file in human-readable format

Usage:
  ngsi-trace view [flags] <file.ntrace>

Flags:
`)
		fs.PrintDefaults()
	}
	opts := filterFlags(fs)
	path := parseArgs(fs, args)

	if err := commands.RunView(path, *opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ngsi-trace filter - Filter trace file and write to new file

Usage:
  ngsi-trace filter -o <out.ntrace> [flags] <file.ntrace>

Flags:
`)
		fs.PrintDefaults()
	}
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)
	path := parseArgs(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, *output, *opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ngsi-trace stats - Show statistics about the trace file

Usage:
  ngsi-trace stats <file.ntrace>

`)
	}
	path := parseArgs(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
