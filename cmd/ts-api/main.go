package main

import (
	"TrialStats/internal/config"
	"TrialStats/internal/core/model"
	"TrialStats/internal/engine/manager"
	"TrialStats/internal/logger"
	"TrialStats/internal/probe"
	"TrialStats/internal/query"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "ts-api",
	Short:        "Serve trial reports over HTTP and gRPC.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	// 1. Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.InitLogger(level)
	logger.Info("Configuration loaded successfully.")

	// 2. Fill the store, either from NATS or from a local analysis
	store := query.NewStore(nil)
	var refresh query.RefreshFunc
	if cfg.API.FollowNATS {
		natsDef, ok := cfg.Writer("nats")
		if !ok {
			return fmt.Errorf("follow_nats requires an enabled nats writer")
		}
		sub, err := probe.NewSubscriber(natsDef.NATS)
		if err != nil {
			return err
		}
		defer sub.Close()
		if err := sub.Start(func(batchID string, createdAt time.Time, r *model.Report) {
			store.Upsert(batchID, createdAt, r)
			logger.Infof("Received report for %s from batch %s.", r.Protocol, batchID)
		}); err != nil {
			return err
		}
	} else {
		analyzer := manager.NewAnalyzer(cfg)
		refresh = func(ctx context.Context) (*model.Batch, error) {
			return analyzer.Analyze()
		}
		batch, err := analyzer.Analyze()
		store.Set(batch)
		if err != nil {
			logger.Warningf("Initial analysis incomplete: %v", err)
		}
	}

	// 3. Optional history from ClickHouse
	var history query.Querier
	if chDef, ok := cfg.Writer("clickhouse"); ok {
		history, err = query.NewClickHouseQuerier(chDef.ClickHouse)
		if err != nil {
			logger.Warningf("History disabled: %v", err)
			history = nil
		}
	}

	// 4. Start the HTTP and gRPC servers
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: query.NewRouter(store, refresh, history),
	}
	go func() {
		logger.Infof("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.API.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.API.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer()
	query.RegisterReportService(grpcServer, store)
	go func() {
		logger.Infof("gRPC server starting on %s", cfg.API.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Errorf("gRPC server stopped: %v", err)
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("API server shutting down...")

	grpcServer.GracefulStop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("API server exited.")
	return nil
}
