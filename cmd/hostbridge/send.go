package main

import (
	"encoding/json"
	"fmt"

	"github.com/mbocsi/hostbridge/client"
	"github.com/mbocsi/hostbridge/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSendCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <command> [params-json]",
		Short: "Send one command to a running bridge and print the result",
		Example: `  hostbridge send get_scene_info
  hostbridge send create_object '{"type":"SPHERE","location":[0,1,0]}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			cfg.Log.Output = cmd.ErrOrStderr()
			config.SetupLogger(cfg.Log)

			var params map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
					return fmt.Errorf("params must be a JSON object: %w", err)
				}
			}

			conn := client.NewConn(cfg.Bridge.Addr())
			conn.Timeout = cfg.Bridge.Timeout
			if err := conn.Connect(cmd.Context()); err != nil {
				return fmt.Errorf("failed to connect to host at %s: %w", conn.Addr, err)
			}
			defer conn.Disconnect()

			result, err := conn.SendCommand(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	return cmd
}
