package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/boardsync/internal/api"
	"github.com/zulandar/boardsync/internal/audit"
	"github.com/zulandar/boardsync/internal/auth"
	"github.com/zulandar/boardsync/internal/broadcast"
	"github.com/zulandar/boardsync/internal/cache"
	"github.com/zulandar/boardsync/internal/db"
	"github.com/zulandar/boardsync/internal/logging"
	"github.com/zulandar/boardsync/internal/presence"
	"github.com/zulandar/boardsync/internal/realtime"
	"github.com/zulandar/boardsync/internal/relay"
	"github.com/zulandar/boardsync/internal/reorder"
	"github.com/zulandar/boardsync/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		Long:  "Serves the board API and the realtime channel, and runs the scheduled sequence audit when configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to boardsync config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	if port > 0 {
		cfg.Server.Port = port
	}

	log := logging.New(cfg.Log, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown", logging.Err(err))
		}
	}()

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	respCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return err
	}

	var sinks []broadcast.Sink
	chat, err := relay.FromConfig(cfg.Relay, log)
	if err != nil {
		return err
	}
	if chat != nil {
		defer chat.Close()
		sinks = append(sinks, chat)
	}

	hub := realtime.NewHub(presence.NewRegistry(presence.WithDedupeUsers(cfg.Presence.DedupeUsers)), realtime.Options{
		SendBuffer:     cfg.Realtime.SendBuffer,
		PingInterval:   cfg.Presence.PingInterval,
		PongTimeout:    cfg.Presence.PongTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
		Sinks:          sinks,
	})

	exec := reorder.NewExecutor(gormDB, reorder.Options{Cache: respCache, Logger: log})

	if cfg.Audit.Schedule != "" {
		sched, err := audit.NewScheduler(gormDB, cfg.Audit.Schedule, audit.Options{
			Repair: cfg.Audit.Repair,
			Cache:  respCache,
			Logger: log,
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv, err := api.New(api.Options{
		Executor: exec,
		Auth:     auth.NewTokenService(cfg.Auth),
		Hub:      hub,
		Cache:    respCache,
		CacheTTL: cfg.Cache.TTL,
		Logger:   log,
		Service:  cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}

	log.Info("starting", slog.Int("port", cfg.Server.Port),
		slog.String("db", cfg.Database.Driver), slog.String("cache", cfg.Cache.Backend))
	return srv.Start(ctx, cfg.Server.Port, cmd.OutOrStdout())
}
