package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeTracker    = "tracker-service"
	ModeFleetboard = "fleetboard-service"
	ModeToken      = "token"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeTracker, "tracker", "t":
		return ModeTracker, true
	case ModeFleetboard, "fleetboard", "board", "f":
		return ModeFleetboard, true
	case ModeToken, "tok":
		return ModeToken, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `tracker-service --max-concurrent=200`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./fleet-track --mode=<service> [flags]

Services (modes):
  tracker-service              Vehicle sessions, position ingest, and live watch API
  fleetboard-service           Fleet monitoring board and aggregate metrics API
  token                        Mint a development JWT for a seeded user

Examples:
  ./fleet-track --mode=tracker-service --max-concurrent=200
  ./fleet-track --mode=fleetboard-service --max-concurrent=50
  ./fleet-track --mode=token --user=bus-042 --role=VEHICLE`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./fleet-track --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
