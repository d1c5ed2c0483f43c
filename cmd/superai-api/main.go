package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/Butcher-11/SuperAI/pkg/cmd"
	"github.com/Butcher-11/SuperAI/pkg/engine"
	"github.com/Butcher-11/SuperAI/pkg/log"
	"github.com/Butcher-11/SuperAI/pkg/otelhelper"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "superai-api",
		Usage:                 "Create, deploy and execute workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
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
				Name:    "engine-webhook-url",
				Usage:   "Public base URL for engine webhook endpoints",
				Sources: cli.EnvVars("ENGINE_WEBHOOK_URL"),
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
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing SuperAI API")

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
				"superai-api",
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
				BaseURL:        command.String("engine-url"),
				APIKey:         command.String("engine-api-key"),
				WebhookBaseURL: command.String("engine-webhook-url"),
			}, newTracer(ctx, command))
			defer engineClient.Close()

			api := NewAPI(
				logger,
				persistence,
				engineClient,
				executionLimiter,
				eventBus,
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func newTracer(ctx context.Context, command *cli.Command) trace.Tracer {
	if !command.Bool("tracing") {
		return nil
	}

	tracer, err := otelhelper.NewTracer(ctx, "superai-api")
	if err != nil {
		log.WithModule("api").WarnContext(ctx, "Tracing disabled", "error", err)

		return nil
	}

	return tracer
}
