// Command scheduler runs the Scheduler process (C7): it is itself a
// handler bound at OBC's endpoint, persisting future-dated commands
// and re-injecting them into the Command Dispatcher at their due
// time.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ex3-obc/fsw-core/pkg/appconfig"
	"github.com/ex3-obc/fsw-core/pkg/applog"
	"github.com/ex3-obc/fsw-core/pkg/scheduler"
	"github.com/spf13/cobra"
)

func main() {
	var (
		ipcPrefix  string
		saveDir    string
		logLevel   string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Scheduler for deferred commands on the on-board message fabric",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := appconfig.Bind(cmd, configPath)
			if err != nil {
				return err
			}

			log := applog.New(v.GetString("log-level"))
			log.Info("scheduler: starting",
				"ipc-prefix", v.GetString("ipc-prefix"), "save-dir", v.GetString("save-dir"))

			s, err := scheduler.New(log, v.GetString("ipc-prefix"), v.GetString("save-dir"))
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go waitForSignal(cancel)

			return s.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&ipcPrefix, "ipc-prefix", "/run/fsw", "IPC socket directory")
	flags.StringVar(&saveDir, "save-dir", "/var/lib/fsw/saved_messages", "directory holding deferred command records")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&configPath, "config", "", "optional config file path")

	if err := cmd.Execute(); err != nil {
		slog.Error("scheduler: fatal", "err", err)
		os.Exit(1)
	}
}

func waitForSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
