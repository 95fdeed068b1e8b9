package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleximart-etl/config"
	"fleximart-etl/internal/api"
	"fleximart-etl/internal/broker"
	"fleximart-etl/internal/service"
	"fleximart-etl/internal/util"
	"fleximart-etl/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.ServiceName); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(cfg).ExecuteContext(ctx)
	stop()

	if err != nil {
		util.GetLogger().Error("Command failed", zap.Error(err))
		util.SyncLogger()
		os.Exit(1)
	}
	util.SyncLogger()
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "etl",
		Short:         "FlexiMart ETL: cleanse raw extracts and build the sales warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfg.Input.Dir, "input", cfg.Input.Dir, "Directory containing the *_raw.csv files")
	root.PersistentFlags().StringVar(&cfg.Input.ReportPath, "report", cfg.Input.ReportPath, "Path of the data-quality report")
	root.PersistentFlags().StringVar(&cfg.Input.CheckpointDir, "checkpoint", cfg.Input.CheckpointDir, "Directory of the fact watermark store")

	root.AddCommand(
		newRunCmd(cfg),
		newWarehouseCmd(cfg),
		newAllCmd(cfg),
		newServeCmd(cfg),
	)
	return root
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load raw files into the normalized store and write the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, false, func(a *app) error {
				res, err := a.pipeline.RunNormalized(cmd.Context())
				if err != nil {
					return err
				}
				logResult(res)
				return nil
			})
		},
	}
}

func newWarehouseCmd(cfg *config.Config) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Rebuild the star schema from the normalized store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, true, func(a *app) error {
				run := a.pipeline.RunWarehouse
				if full {
					run = a.pipeline.RebuildWarehouse
				}
				res, err := run(cmd.Context())
				if err != nil {
					return err
				}
				logResult(res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Reset the fact watermark and rescan every order item")
	return cmd
}

func newAllCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the normalized pipeline, then the warehouse transform",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, true, func(a *app) error {
				res, err := a.pipeline.RunNormalized(cmd.Context())
				if err != nil {
					return err
				}
				logResult(res)

				res, err = a.pipeline.RunWarehouse(cmd.Context())
				if err != nil {
					return err
				}
				logResult(res)
				return nil
			})
		},
	}
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and chain warehouse runs off run events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, true, func(a *app) error {
				return serve(cmd.Context(), a)
			})
		},
	}
}

func withApp(cfg *config.Config, withWarehouse bool, fn func(*app) error) error {
	shutdownTracer, err := initTracing(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdownTracer()

	a, err := newApp(cfg, withWarehouse)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(a)
}

func logResult(res *service.RunResult) {
	fields := []zap.Field{zap.String("pipeline", res.Pipeline), zap.String("run_id", res.RunID)}
	for _, k := range res.Metrics.Keys() {
		fields = append(fields, zap.Int64(k, res.Metrics.Get(k)))
	}
	util.GetLogger().Info("Run summary", fields...)
}

func serve(ctx context.Context, a *app) error {
	logger := util.GetLogger()

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	var warehouseWorker *worker.WarehouseWorker
	if a.cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(a.cfg.Kafka.Brokers, a.cfg.Kafka.TopicRunEvents, a.cfg.Kafka.ConsumerGroup)
		warehouseWorker = worker.NewWarehouseWorker(consumer, a.pipeline)
		go func() {
			if err := warehouseWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Warehouse worker error", zap.Error(err))
			}
		}()
	}

	if a.cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]api.ReadinessCheck{
		"source":    a.source.GetDB().PingContext,
		"warehouse": a.warehouse.GetDB().PingContext,
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.GetClient().Ping(ctx).Err()
		}
	}

	router := gin.New()
	api.NewHandler(a.pipeline, checks).SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if warehouseWorker != nil {
		_ = warehouseWorker.Stop()
	}

	logger.Info("Server exited")
	return nil
}
