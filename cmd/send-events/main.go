// Package main sends canned notification event scenarios to the events queue.
//
// Without arguments it lists the available scenarios. With a scenario path it
// publishes that scenario's events, keeping their fixture ids and times, with
// a delay between events. An unknown path prints the list to stderr.
//
// Usage:
//
//	send-events [-delay 1s] [scenario-path]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"fdm/internal/config"
	"fdm/internal/queue"
	"fdm/internal/simulate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "send-events: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("send-events", flag.ContinueOnError)
	fs.SetOutput(errOut)
	delay := fs.Duration("delay", time.Second, "delay between events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return listScenarios(out)
	}
	path := fs.Arg(0)
	if _, err := simulate.GetScenario(path); err != nil {
		fmt.Fprintf(errOut, "Unknown scenario %q. Available scenarios:\n\n", path)
		_ = listScenarios(errOut)
		return err
	}

	_ = godotenv.Load()
	var awsSettings config.AWSConfig
	if err := envconfig.Process("", &awsSettings); err != nil {
		return fmt.Errorf("reading aws settings: %w", err)
	}
	if awsSettings.EventsQueueURL == "" {
		return fmt.Errorf("SQS_EVENTS_QUEUE_URL is not set")
	}

	awsCfg, err := config.LoadAWSConfig(ctx, awsSettings)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	publisher := queue.NewPublisher(sqs.NewFromConfig(awsCfg), awsSettings.EventsQueueURL, logger)
	sent, err := simulate.NewSimulator(publisher, logger).Replay(ctx, path, *delay)
	if err != nil {
		return fmt.Errorf("sent %d events before failing: %w", sent, err)
	}
	fmt.Fprintf(out, "Sent %d events from %s\n", sent, path)
	return nil
}

func listScenarios(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tEVENTS")
	for _, s := range simulate.ListScenarios() {
		fmt.Fprintf(tw, "%s\t%d\n", s.Path, s.Count)
	}
	return tw.Flush()
}
