package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mbocsi/hostbridge/client"
	"github.com/mbocsi/hostbridge/config"
	"github.com/mbocsi/hostbridge/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMCPCommand(v *viper.Viper) *cobra.Command {
	var discover time.Duration

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the bridge's scene tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			// stdout carries the MCP session.
			cfg.Log.Output = cmd.ErrOrStderr()
			config.SetupLogger(cfg.Log)

			addr := cfg.Bridge.Addr()
			if discover > 0 {
				svc, err := client.Discover(discover)
				if err != nil {
					return fmt.Errorf("discover bridge: %w", err)
				}
				addr = svc.HostPort()
				slog.Info("Discovered bridge", "name", svc.ServiceName, "addr", addr)
			}

			manager := client.NewManager(addr, cfg.Bridge.Timeout)
			defer manager.Close()

			slog.Info("Serving MCP over stdio", "bridge", addr)
			s := mcp.NewMCPServer(manager, version)
			return s.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&discover, "discover", 0, "find the bridge over mDNS for up to this long instead of using --host/--port")
	return cmd
}
