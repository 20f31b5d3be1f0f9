// Command console is the operator and voter command line for the election
// API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/config"
	"github.com/meowecho-tech/vote/internal/log"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"register":   {"create an account", (*app).register},
	"login":      {"check email and password, sending a one-time code", (*app).login},
	"verify":     {"exchange the one-time code for a session", (*app).verify},
	"logout":     {"forget the stored session", (*app).logout},
	"whoami":     {"show the role the stored session claims", (*app).whoami},
	"orgs":       {"list|create organizations", (*app).orgs},
	"elections":  {"list|get|create|update|publish|close|results", (*app).electionsCmd},
	"contests":   {"list|create|update|delete contests of an election", (*app).contestsCmd},
	"candidates": {"list|create|update|delete candidates of a contest", (*app).candidates},
	"rolls":      {"list|add|remove|import|reconcile-db voter rolls", (*app).rolls},
	"votable":    {"list contests the current voter can see", (*app).votable},
	"ballot":     {"show a contest ballot", (*app).ballot},
	"vote":       {"submit selections for a contest", (*app).vote},
	"results":    {"show contest results", (*app).results},
	"receipts":   {"show receipts kept in the local ledger", (*app).receipts},
	"enqueue":    {"queue close|import tasks for the worker", (*app).enqueue},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (default: console.yaml in ., ./config, ../config)")
	fs.Usage = func() { usage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(fs, stderr)
		return exitUsage
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		usage(fs, stderr)
		return exitUsage
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	logger := log.NewWithWriter(cfg.Environment, cfg.Log.Level, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer a.close()

	if err := cmd.run(a, ctx, fs.Args()[1:]); err != nil {
		return report(stderr, err)
	}
	return exitOK
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: console [-config file] <command> [flags]")
	fs.PrintDefaults()
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].summary)
	}
}

func report(w io.Writer, err error) int {
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(w, err)
		}
		return exitUsage
	}
	kind := apperr.KindOf(err)
	if code := apperr.CodeOf(err); code != "" {
		fmt.Fprintf(w, "error: %v (%s, %s)\n", err, kind, code)
	} else {
		fmt.Fprintf(w, "error: %v (%s)\n", err, kind)
	}
	return exitError
}
