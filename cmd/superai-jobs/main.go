// Package main provides the SuperAI background jobs service. It polls the
// engine for running executions and enforces the retention policy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/Butcher-11/SuperAI/pkg/cmd"
	"github.com/Butcher-11/SuperAI/pkg/engine"
	"github.com/Butcher-11/SuperAI/pkg/log"
	"github.com/Butcher-11/SuperAI/pkg/otelhelper"
	"github.com/Butcher-11/SuperAI/pkg/reconciler"
	"github.com/Butcher-11/SuperAI/pkg/tracker"
)

func main() {
	command := &cli.Command{
		Name:                  "superai-jobs",
		Usage:                 "Run execution reconciliation and retention jobs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "engine-url",
				Usage:    "Workflow engine API base URL",
				Required: true,
				Sources:  cli.EnvVars("ENGINE_URL"),
			},
			&cli.StringFlag{
				Name:    "engine-api-key",
				Usage:   "Workflow engine API key",
				Sources: cli.EnvVars("ENGINE_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for shared concurrency slots (in-memory when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "monitor-schedule",
				Usage:   "Cron expression for the execution status poll",
				Sources: cli.EnvVars("MONITOR_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron expression for the execution purge job",
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "retention-days",
				Usage:   "Days to keep finished executions",
				Sources: cli.EnvVars("RETENTION_DAYS"),
			},
			&cli.DurationFlag{
				Name:    "max-execution-age",
				Usage:   "Fail running executions older than this (0 disables)",
				Sources: cli.EnvVars("MAX_EXECUTION_AGE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("jobs")
	logger.InfoContext(ctx, "Initializing SuperAI jobs")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return fmt.Errorf("initialize persistence: %w", err)
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(
		command.String("event-bus"),
		command.String("kafka-brokers"),
		"superai-jobs",
		logger,
	)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	executionLimiter, err := cmd.NewLimiter(command.String("redis-url"))
	if err != nil {
		return fmt.Errorf("initialize limiter: %w", err)
	}

	engineClient := engine.NewClient(engine.Config{
		BaseURL: command.String("engine-url"),
		APIKey:  command.String("engine-api-key"),
	}, newTracer(ctx, command))
	defer engineClient.Close()

	executionTracker := tracker.NewTracker(persistence.ExecutionRepository(), engineClient)

	rec := reconciler.NewReconciler(persistence, executionTracker, executionLimiter, eventBus, reconciler.Config{
		MonitorSchedule:   command.String("monitor-schedule"),
		RetentionSchedule: command.String("retention-schedule"),
		RetentionDays:     command.Int("retention-days"),
		MaxExecutionAge:   command.Duration("max-execution-age"),
	})

	if err := rec.Start(ctx); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		logger.InfoContext(ctx, "Received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.InfoContext(ctx, "Context cancelled, shutting down")
	}

	rec.Stop()

	return nil
}

func newTracer(ctx context.Context, command *cli.Command) trace.Tracer {
	if !command.Bool("tracing") {
		return nil
	}

	tracer, err := otelhelper.NewTracer(ctx, "superai-jobs")
	if err != nil {
		log.WithModule("jobs").WarnContext(ctx, "Tracing disabled", "error", err)

		return nil
	}

	return tracer
}
