// Command coms-handler runs the Radio (Coms) Handler process (C4):
// it owns the radio peripheral byte stream, uplinks frames toward the
// Command Dispatcher, and serves downlink_in for every other
// handler's response frames.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.bug.st/serial"

	"github.com/ex3-obc/fsw-core/pkg/appconfig"
	"github.com/ex3-obc/fsw-core/pkg/applog"
	"github.com/ex3-obc/fsw-core/pkg/radio"
	"github.com/spf13/cobra"
)

func main() {
	var (
		ipcPrefix  string
		device     string
		baudRate   int
		maxBody    int
		logLevel   string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "coms-handler",
		Short: "Radio (Coms) handler for the on-board message fabric",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := appconfig.Bind(cmd, configPath)
			if err != nil {
				return err
			}

			log := applog.New(v.GetString("log-level"))
			log.Info("coms-handler: starting",
				"ipc-prefix", v.GetString("ipc-prefix"), "device", v.GetString("device"))

			port, err := openSerial(v.GetString("device"), v.GetInt("baud"))
			if err != nil {
				return fmt.Errorf("coms-handler: open radio device: %w", err)
			}
			defer port.Close()

			h, err := radio.New(log, radio.Config{
				Prefix:     v.GetString("ipc-prefix"),
				Peripheral: port,
				MaxBody:    v.GetInt("max-body"),
			})
			if err != nil {
				return err
			}
			defer h.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go waitForSignal(cancel)

			return h.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&ipcPrefix, "ipc-prefix", "/run/fsw", "IPC socket directory")
	flags.StringVar(&device, "device", "/dev/ttyUSB0", "radio TTY device path")
	flags.IntVar(&baudRate, "baud", 115200, "radio TTY baud rate")
	flags.IntVar(&maxBody, "max-body", 0, "per-fragment downlink payload budget (0 = package default)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&configPath, "config", "", "optional config file path")

	if err := cmd.Execute(); err != nil {
		slog.Error("coms-handler: fatal", "err", err)
		os.Exit(1)
	}
}

func openSerial(device string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return port, nil
}

func waitForSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
