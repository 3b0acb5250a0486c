package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/livequiz/internal/api"
	"github.com/mcoot/livequiz/internal/config"
	"github.com/mcoot/livequiz/internal/factory"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the quiz server",
		Long: `Run the HTTP API and the session command listener.

Configuration is read from LIVEQUIZ_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				env.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, env, env.Logger(os.Stdout))
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Listen port (env: LIVEQUIZ_PORT)")

	return cmd
}

func serve(ctx context.Context, env config.Config, logger *slog.Logger) error {
	slog.SetDefault(logger)

	app, err := factory.New(factory.FromEnv(env, logger))
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close application", slog.String("error", err.Error()))
		}
	}()

	if err := app.Ready(ctx); err != nil {
		return fmt.Errorf("backends not ready: %w", err)
	}

	commands, err := app.Coordinator.Listen(ctx)
	if err != nil {
		return fmt.Errorf("listen for commands: %w", err)
	}
	defer func() { _ = commands.Close() }()

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Coordinator: app.Coordinator,
		Catalog:     app.Catalog,
		Results:     app.Results,
		Bus:         app.Bus,
		Ready:       app.Ready,
	})

	server := api.NewServer(router, api.ServerConfigFrom(env), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	})

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", env.Storage),
		slog.String("bus", env.Bus))

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
