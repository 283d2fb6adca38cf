// Command shabench compares the throughput of the SHA-256 engine with other
// implementations on this host.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Heidric/digest.git/internal/perf"
	"github.com/Heidric/digest.git/pkg/log"
)

type cli struct {
	Duration time.Duration `short:"d" default:"75ms" help:"Length of each of the three timed runs."`
	LogLevel string        `name:"log-level" default:"info" env:"LOGGER_LEVEL" help:"Log level."`
}

func report(w io.Writer, host perf.Host, results []perf.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CPU\t%s (%d cores, %.0f MHz)\n\n", host.Model, host.Cores, host.MHz)
	fmt.Fprintln(tw, "IMPLEMENTATION\tMiB/s")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.2f\n", r.Name, r.MiBs)
	}
	return tw.Flush()
}

func run(ctx context.Context, params cli, out io.Writer) error {
	l, err := log.NewLogger(ctx, &log.Config{Level: params.LogLevel, HumanFriendly: true, Service: "shabench"})
	if err != nil {
		return err
	}
	logger := l.Zerolog()

	contenders := perf.Contenders()

	sample := make([]byte, 1<<20+13)
	if _, err := rand.Read(sample); err != nil {
		return err
	}
	if err := perf.CrossCheck(sample, contenders); err != nil {
		return err
	}
	logger.Debug().Int("contenders", len(contenders)).Msg("digests agree")

	host, err := perf.HostCPU(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("host cpu unavailable")
	}

	results, err := perf.Run(ctx, params.Duration, contenders)
	if err != nil {
		return err
	}
	return report(out, host, results)
}

func main() {
	var params cli
	kctx := kong.Parse(&params, kong.Name("shabench"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.FatalIfErrorf(run(ctx, params, os.Stdout))
}
