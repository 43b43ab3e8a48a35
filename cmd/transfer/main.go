package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gridsync/pkg/client"
	"gridsync/pkg/config"
	"gridsync/pkg/logger"
	"gridsync/pkg/publisher"
	"gridsync/pkg/shared"
	"gridsync/pkg/transfer"
)

// pathList collects repeated -path flags of the form "source=destination".
type pathList []shared.PathPair

func (p *pathList) String() string {
	pairs := make([]string, 0, len(*p))
	for _, pair := range *p {
		pairs = append(pairs, pair.Source+"="+pair.Destination)
	}
	return strings.Join(pairs, ",")
}

func (p *pathList) Set(value string) error {
	source, destination, found := strings.Cut(value, "=")
	if !found || source == "" || destination == "" {
		return fmt.Errorf("expected source=destination, got %q", value)
	}
	*p = append(*p, shared.PathPair{Source: source, Destination: destination})
	return nil
}

func main() {
	var paths pathList
	var (
		configPath = flag.String("config", "/etc/gridsync/config.toml", "path to config file")
		sourceEP   = flag.String("source", "", "source endpoint id")
		destEP     = flag.String("dest", "", "destination endpoint id")
		retries    = flag.Int("retries", -2, "error events to tolerate before cancelling, -1 for unlimited (default from config)")
		enqueue    = flag.Bool("enqueue", false, "enqueue the transfer instead of running it inline")
	)
	flag.Var(&paths, "path", "path pair to transfer as source=destination (repeatable)")
	flag.Parse()

	if *sourceEP == "" {
		logger.Fatal("source endpoint is required", nil)
	}
	if *destEP == "" {
		logger.Fatal("destination endpoint is required", nil)
	}
	if len(paths) == 0 {
		logger.Fatal("at least one -path is required", nil)
	}

	config, err := config.LoadFromFile(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", map[string]any{
			"config_path": *configPath,
			"error":       err.Error(),
		})
	}
	logger.SetLevel(logger.ParseLevel(config.Daemon.LogLevel))

	payload := &shared.TransferPayload{
		SourceEndpoint:      *sourceEP,
		DestinationEndpoint: *destEP,
		Paths:               paths,
	}
	if *retries >= -1 {
		payload.Retries = retries
	}

	if *enqueue {
		publishTransfer(config, payload)
		return
	}
	runTransfer(config, payload)
}

func publishTransfer(config *config.Config, payload *shared.TransferPayload) {
	pub, err := publisher.NewPublisher(config)
	if err != nil {
		logger.Fatal("failed to create publisher", map[string]any{
			"error": err.Error(),
		})
	}
	defer pub.Close()

	jobID, err := pub.PublishTransferTask(payload)
	if err != nil {
		logger.Fatal("failed to publish transfer", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("transfer enqueued", map[string]any{
		"job_id": jobID,
	})
}

func runTransfer(config *config.Config, payload *shared.TransferPayload) {
	transferClient, err := client.New(&config.Service)
	if err != nil {
		logger.Fatal("failed to create transfer client", map[string]any{
			"error": err.Error(),
		})
	}

	entries := make([]transfer.PathEntry, 0, len(payload.Paths))
	for _, pair := range payload.Paths {
		entries = append(entries, transfer.PathEntry{
			Source:      pair.Source,
			Destination: pair.Destination,
		})
	}

	opts := transfer.Options{
		Interval:          time.Duration(config.Transfer.IntervalSeconds) * time.Second,
		InactivityTimeout: time.Duration(config.Transfer.InactivityTimeoutSeconds) * time.Second,
		VerifyChecksum:    config.Transfer.VerifyChecksum,
		Retries:           config.Transfer.Retries,
	}
	if payload.Retries != nil {
		opts.Retries = *payload.Retries
	}

	result, err := transfer.Run(context.Background(), transferClient,
		payload.SourceEndpoint, payload.DestinationEndpoint, entries, opts)
	if err != nil {
		logger.Fatal("transfer failed", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("transfer finished", map[string]any{
		"task_id": result.TaskID,
		"success": result.Success,
		"error":   result.Error,
	})
	if !result.Success {
		os.Exit(1)
	}
}
