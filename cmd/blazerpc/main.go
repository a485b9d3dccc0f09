// Command blazerpc is the CLI front-end for a blazerpc application: it is
// a collaborator the dispatcher treats as external (spec.md §1, §6), not
// part of the core it drives.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"plugin"
	"strings"
	"syscall"
	"time"

	blazerpc "github.com/Ifihan/blazerpc"
)

const rootUsage = `blazerpc — inference-serving framework CLI

USAGE:
  blazerpc <command> [flags]

COMMANDS:
  serve <app-ref> [flags]   Start the gRPC inference server
  proto <app-ref> [flags]   Write blaze_service.proto for the registered models
  help                      Show this message
`

const serveUsage = `serve <app-ref> FLAGS:
  -host string           listen host (default "0.0.0.0")
  -port int               listen port (default 50051)
  -workers int            accepted and ignored (default 0)
  -max-batch-size int      adaptive batcher size bound (default 8)
  -batch-timeout duration  adaptive batcher timeout bound (default 10ms)
  -grace-period duration   drain grace period on shutdown (default 5s)
  -otlp-endpoint string    OTLP collector endpoint (tracing disabled if empty)
  -reload                  restart the server when app-ref's plugin file changes

<app-ref> is "path/to/plugin.so:Symbol", where Symbol is a *blazerpc.App
or a func() *blazerpc.App exported by a Go plugin (built with
"go build -buildmode=plugin").
`

const protoUsage = `proto <app-ref> FLAGS:
  -output-dir string   directory blaze_service.proto is written under (default ".")
`

// ConfigurationError reports a bad CLI invocation: unknown command, a
// malformed app-ref, a plugin that doesn't export the named symbol, or an
// exported symbol of the wrong type (spec.md §7: "fatal at startup; exit
// code 1").
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string { return "blazerpc: " + e.Detail }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return 1
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "serve":
		err = cmdServe(rest)
	case "proto":
		err = cmdProto(rest)
	case "help", "-h", "--help":
		fmt.Print(rootUsage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "blazerpc: unknown command %q\n\n%s", cmd, rootUsage)
		return 1
	}

	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return 1
	}
	return 2
}

// loadApp resolves an app-ref of the form "path/to/plugin.so:Symbol" into
// a *blazerpc.App (spec.md §6's "<app-ref> is a module:attribute string
// identifying an application object"; Go's nearest equivalent to a dynamic
// module import is loading a compiled plugin and looking up its exported
// symbol).
func loadApp(ref string) (*blazerpc.App, error) {
	path, symbol, ok := strings.Cut(ref, ":")
	if !ok || path == "" || symbol == "" {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("app-ref %q must have the form path/to/plugin.so:Symbol", ref)}
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("app-ref %q: %v", ref, err)}
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("loading plugin %s: %v", path, err)}
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("plugin %s has no exported symbol %q: %v", path, symbol, err)}
	}

	switch v := sym.(type) {
	case *blazerpc.App:
		return v, nil
	case func() *blazerpc.App:
		return v(), nil
	default:
		return nil, &ConfigurationError{Detail: fmt.Sprintf("symbol %q in %s is %T, want *blazerpc.App or func() *blazerpc.App", symbol, path, sym)}
	}
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))

	host := fs.String("host", "0.0.0.0", "")
	port := fs.Int("port", 50051, "")
	_ = fs.Int("workers", 0, "") // collaborator hint only; the batcher adapter sizes its own fan-out
	maxBatchSize := fs.Int("max-batch-size", 8, "")
	batchTimeout := fs.Duration("batch-timeout", 10*time.Millisecond, "")
	gracePeriod := fs.Duration("grace-period", 5*time.Second, "")
	otlpEndpoint := fs.String("otlp-endpoint", "", "")
	reload := fs.Bool("reload", false, "")

	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return &ConfigurationError{Detail: err.Error()}
	}
	if fs.NArg() != 1 {
		fmt.Fprint(os.Stderr, serveUsage)
		return &ConfigurationError{Detail: "serve requires exactly one <app-ref> argument"}
	}
	appRef := fs.Arg(0)

	app, err := loadApp(appRef)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []blazerpc.ServeOption{
		blazerpc.WithHost(*host),
		blazerpc.WithPort(*port),
		blazerpc.WithMaxBatchSize(*maxBatchSize),
		blazerpc.WithBatchTimeout(*batchTimeout),
		blazerpc.WithGracePeriod(*gracePeriod),
	}
	if *otlpEndpoint != "" {
		opts = append(opts, blazerpc.WithOTLPEndpoint(*otlpEndpoint))
	}

	if !*reload {
		return app.Serve(ctx, opts...)
	}
	return serveWithReload(ctx, appRef, opts)
}

func cmdProto(args []string) error {
	fs := flag.NewFlagSet("proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	outputDir := fs.String("output-dir", ".", "")

	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, protoUsage)
		return &ConfigurationError{Detail: err.Error()}
	}
	if fs.NArg() != 1 {
		fmt.Fprint(os.Stderr, protoUsage)
		return &ConfigurationError{Detail: "proto requires exactly one <app-ref> argument"}
	}

	app, err := loadApp(fs.Arg(0))
	if err != nil {
		return err
	}
	text, err := app.Proto()
	if err != nil {
		return fmt.Errorf("blazerpc: generate proto: %w", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("blazerpc: create %s: %w", *outputDir, err)
	}
	out := filepath.Join(*outputDir, "blaze_service.proto")
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return fmt.Errorf("blazerpc: write %s: %w", out, err)
	}
	return nil
}
