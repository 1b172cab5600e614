package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openmined/syftbox-client/internal/client"
	"github.com/openmined/syftbox-client/internal/client/controlplane"
	"github.com/openmined/syftbox-client/internal/utils"
	"github.com/openmined/syftbox-client/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	var addr string
	var authToken string

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the SyftBox client daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			fmt.Println(cyan.Bold(true).Render(utils.SyftBoxArt))
			slog.Info("syftbox", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			configPath := resolveConfigPath(cmd)
			slog.Info("daemon using config", "path", configPath)

			daemon, err := client.NewClientDaemon(&controlplane.CPServerConfig{
				Addr:       addr,
				AuthToken:  authToken,
				ConfigPath: configPath,
			})
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			if err := daemon.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon start", "error", err)
				return err
			}
			return nil
		},
	}

	daemonCmd.Flags().StringVarP(&addr, "http-addr", "a", "localhost:7938", "Address to bind the local http server")
	daemonCmd.Flags().StringVarP(&authToken, "http-token", "t", "", "Access token for the local http server")

	return daemonCmd
}
