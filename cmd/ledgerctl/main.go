// Command ledgerctl drives the POS ledger from the command line: stock
// movements and integrity checks, checkout, cash accounts and shift closure.
//
// Usage:
//
//	ledgerctl [-config file] [-log-level level] <command> [flags]
//
// Every command prints JSON to stdout. Exit status is 0 on success, 1 on
// error, 2 on a malformed command line and 3 when verify or sweep found a
// stock level diverging from its movement log.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
)

const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitDivergence = 3
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "config file (default: config.toml in ., ./config, /etc/ledger)")
	logLevel := fs.String("log-level", "", "override log.level")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		printUsage(stderr)
		return exitUsage
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitError
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return exitError
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return exitError
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.close(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "shutdown: %v\n", err)
		}
	}()

	return exitCode(cmd(ctx, a, rest, stdout), stderr)
}

func exitCode(err error, stderr io.Writer) int {
	var usage usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errDivergence):
		fmt.Fprintln(stderr, err)
		return exitDivergence
	case errors.As(err, &usage):
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if code := shared.ErrorCode(err); code != "" {
		fmt.Fprintf(stderr, "%s: %v\n", code, err)
	} else {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitError
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: ledgerctl [-config file] [-log-level level] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  ledgerctl apply -tenant T -product P -location L -type PURCHASE -qty 10")
	fmt.Fprintln(w, "  ledgerctl verify -tenant T -product P -location L")
	fmt.Fprintln(w, "  ledgerctl sweep -tenants T1,T2 -cron")
	fmt.Fprintln(w, "  ledgerctl checkout -tenant T -file sale.json")
	fmt.Fprintln(w, "  ledgerctl close-shift -tenant T -shift S -counted 412.50")
}
