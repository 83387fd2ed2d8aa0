// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/modelgate/modelgate/internal/version"
)

type (
	cmd struct {
		Run         cmdRun         `cmd:"" help:"Run the gateway."`
		Version     struct{}       `cmd:"" help:"Show version."`
		Healthcheck cmdHealthcheck `cmd:"" help:"Probe a running gateway and exit non-zero when it is unhealthy."`
	}
	cmdRun struct {
		Config      string `help:"Path to the models file. A starter file is written when it does not exist." default:"models.json"`
		Addr        string `help:"Address the gateway listens on." default:"127.0.0.1:8765"`
		LogLevel    string `help:"Log level (debug, info, warn, error)." default:"info"`
		MetricsAddr string `help:"Optional dedicated listener serving only /metrics."`
	}
	cmdHealthcheck struct {
		Addr string `help:"host:port of the gateway to probe." default:"127.0.0.1:8765"`
	}
)

type runFn func(ctx context.Context, c cmdRun, stderr io.Writer) error

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	doMain(ctx, os.Stdout, os.Stderr, os.Args[1:], run)
}

func doMain(ctx context.Context, stdout, stderr io.Writer, args []string, rf runFn) {
	var c cmd
	parser, err := kong.New(&c,
		kong.Name("modelgate"),
		kong.Description("OpenAI-compatible gateway for heterogeneous model backends."),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		log.Fatalf("Error creating parser: %v", err)
	}
	kctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)
	switch kctx.Command() {
	case "run":
		if err := rf(ctx, c.Run, stderr); err != nil {
			log.Fatalf("Error running gateway: %v", err)
		}
	case "version":
		_, _ = fmt.Fprintf(stdout, "ModelGate: %s\n", version.Version)
	case "healthcheck":
		if err := healthcheck(ctx, c.Healthcheck.Addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
	default:
		panic("unreachable")
	}
}
