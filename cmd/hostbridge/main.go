package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbocsi/hostbridge/client"
	"github.com/mbocsi/hostbridge/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(submain(context.Background()))
}

func submain(ctx context.Context) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "hostbridge",
		Short:         "Bridge between a 3D host application and MCP clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadFile(v, v.GetString("config"))
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.String("config", "", "config file (yaml, json or toml)")
	persistent.String("host", "localhost", "bridge host")
	persistent.Int("port", 9876, "bridge port")
	persistent.Duration("timeout", client.DefaultTimeout, "read timeout for bridge responses")
	persistent.String("log-level", "info", "log level (debug, info, warn, error)")
	persistent.String("log-format", config.FormatJSON, "log format (json or text)")

	bind(v, "config", persistent.Lookup("config"))
	bind(v, config.BridgeHostKey, persistent.Lookup("host"))
	bind(v, config.BridgePortKey, persistent.Lookup("port"))
	bind(v, config.BridgeTimeoutKey, persistent.Lookup("timeout"))
	bind(v, config.LogLevelKey, persistent.Lookup("log-level"))
	bind(v, config.LogFormatKey, persistent.Lookup("log-format"))

	cmd.AddCommand(newServeCommand(v))
	cmd.AddCommand(newMCPCommand(v))
	cmd.AddCommand(newSendCommand(v))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func bind(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for %q not found", key))
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
