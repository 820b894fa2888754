// Command bulk-msg-dispatcher runs the Bulk Message Dispatcher
// process: a thin relay forwarding bulk fragments from its ingress
// endpoint to the radio handler's downlink_in, untouched.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ex3-obc/fsw-core/pkg/appconfig"
	"github.com/ex3-obc/fsw-core/pkg/applog"
	"github.com/ex3-obc/fsw-core/pkg/bulkdispatch"
	"github.com/spf13/cobra"
)

func main() {
	var (
		ipcPrefix  string
		logLevel   string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "bulk-msg-dispatcher",
		Short: "Bulk fragment relay for the on-board message fabric",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := appconfig.Bind(cmd, configPath)
			if err != nil {
				return err
			}

			log := applog.New(v.GetString("log-level"))
			log.Info("bulk-msg-dispatcher: starting", "ipc-prefix", v.GetString("ipc-prefix"))

			d, err := bulkdispatch.New(log, v.GetString("ipc-prefix"))
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go waitForSignal(cancel)

			return d.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&ipcPrefix, "ipc-prefix", "/run/fsw", "IPC socket directory")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&configPath, "config", "", "optional config file path")

	if err := cmd.Execute(); err != nil {
		slog.Error("bulk-msg-dispatcher: fatal", "err", err)
		os.Exit(1)
	}
}

func waitForSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
