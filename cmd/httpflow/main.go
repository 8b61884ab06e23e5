// Command httpflow fetches URLs and downloads files with resumable
// transfers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamwoolhether/httpflow/client"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitTransportError   = 3
	ExitValidationFailed = 4
	ExitStorageError     = 5
	ExitInterrupted      = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "get":
		return runGet(cmdArgs)
	case "download":
		return runDownload(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: httpflow <command> [options] URL

Commands:
  get       Fetch a URL and print the response body
  download  Download a URL to a file, directory or bucket; resumable

Run 'httpflow <command> -h' for command-specific help.`)
}

// common holds the flags shared by every command.
type common struct {
	config  *string
	verbose *bool
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		config:  fs.String("config", "", "Config file (default: httpflow.yaml in . or ~/.httpflow)"),
		verbose: fs.Bool("v", false, "Log debug output to stderr"),
	}
}

// manager loads the configuration and builds a Manager that leaves
// requests suspended until the command has attached its handlers.
func (c common) manager() (*client.Manager, *slog.Logger, error) {
	level := slog.LevelWarn
	if *c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := client.LoadConfig(*c.config)
	if err != nil {
		return nil, nil, err
	}

	m, err := client.Build(
		client.WithConfig(cfg),
		client.WithLogger(logger),
		client.WithoutAutoStart(),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, logger, nil
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[httpflow] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// exitCode maps a request's terminal error to an exit code.
func exitCode(err error) int {
	var (
		verr *client.ValidationError
		terr *client.TransportError
		ferr *client.FileSystemError
	)

	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, client.ErrCancelled):
		return ExitInterrupted
	case errors.As(err, &verr):
		return ExitValidationFailed
	case errors.As(err, &ferr):
		return ExitStorageError
	case errors.As(err, &terr):
		return ExitTransportError
	default:
		return ExitGeneralError
	}
}
