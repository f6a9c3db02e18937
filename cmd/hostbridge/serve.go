package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbocsi/hostbridge/commands"
	"github.com/mbocsi/hostbridge/config"
	"github.com/mbocsi/hostbridge/owner"
	"github.com/mbocsi/hostbridge/scene"
	"github.com/mbocsi/hostbridge/server"
	"github.com/mbocsi/hostbridge/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Materials every new scene starts with.
var defaultMaterials = []string{"lambert1", "standardSurface1", "particleCloud1"}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the host side of the bridge over an in-process scene",
		Long: "Runs the bridge server with the scene document owned by the main thread.\n" +
			"SIGHUP restarts the bridge listener; SIGINT or SIGTERM stops everything.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			config.SetupLogger(cfg.Log)
			return runServe(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("ws-listen", "", "WebSocket transport address (disabled when empty)")
	flags.String("http-listen", "", "status and metrics address (disabled when empty)")
	flags.Bool("advertise", false, "announce the bridge over mDNS")
	flags.String("instance", "hostbridge", "mDNS instance name")
	flags.Int("max-clients", 16, "maximum connections per transport")
	flags.String("scene", "", "scene name")

	bind(v, config.WSListenKey, flags.Lookup("ws-listen"))
	bind(v, config.HTTPListenKey, flags.Lookup("http-listen"))
	bind(v, config.MDNSAdvertiseKey, flags.Lookup("advertise"))
	bind(v, config.MDNSInstanceKey, flags.Lookup("instance"))
	bind(v, config.BridgeMaxClientsKey, flags.Lookup("max-clients"))
	bind(v, config.SceneNameKey, flags.Lookup("scene"))
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	executor := owner.NewExecutor(cfg.OwnerQueueSize)
	defer executor.Close()

	doc := scene.NewDocument(cfg.SceneName)
	for _, m := range defaultMaterials {
		doc.AddMaterial(m)
	}

	events := server.NewBroker()
	host := commands.NewHost(doc, commands.HostInfo{Name: cfg.HostName, Version: version})
	host.PublishTo(events)
	registry := server.NewCommandRegistry()
	host.Register(registry)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := server.NewMetrics(promRegistry)
	metrics.TrackExecutor(executor)

	srv := server.NewHostBridgeServer(server.Options{
		Addr:            cfg.Bridge.Addr(),
		WSAddr:          cfg.WSListen,
		MaxClients:      cfg.Bridge.MaxClients,
		MaxMessageBytes: cfg.Bridge.MaxMessageBytes,
		StopTimeout:     cfg.Bridge.StopTimeout,
		Advertise:       cfg.Advertise,
		Instance:        cfg.Instance,
		Registry:        registry,
		Executor:        executor,
		Metrics:         metrics,
	})

	if cfg.HTTPListen != "" {
		status := web.NewWebServer(srv, doc, promRegistry)
		status.SetEvents(events)
		if err := status.Start(cfg.HTTPListen); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := status.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Error shutting down web server", "error", err)
			}
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				slog.Info("Restarting bridge server")
				if err := srv.StartServer(); err != nil {
					slog.Error("Bridge restart failed", "error", err)
				}
			}
		}
	}()

	// The bridge runs in the background; this goroutine becomes the owner
	// thread and serves scene mutations until shutdown.
	done := make(chan error, 1)
	go func() {
		err := srv.Run(ctx)
		cancel()
		done <- err
	}()

	if err := executor.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Owner thread stopped", "error", err)
	}
	executor.Close()

	err := <-done
	slog.Info("Bridge stopped")
	return err
}
