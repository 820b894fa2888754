// Command subsystem-handler runs one Subsystem Handler Runtime (C6)
// process, wired to the capability selected by --subsystem. One
// binary serves every fixed component id except COMS (owned by
// cmd/coms-handler), OBC (owned by cmd/scheduler), BulkMsgDispatcher
// (owned by cmd/bulk-msg-dispatcher) and GS (the ground): DFGM, IRIS,
// SHELL, UHF each have a bespoke capability; ADCS, EPS, GPS, and
// DEPLOYABLES share the generic table-driven capability.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tarm/serial"

	"github.com/ex3-obc/fsw-core/pkg/appconfig"
	"github.com/ex3-obc/fsw-core/pkg/applog"
	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/handler"
	"github.com/ex3-obc/fsw-core/pkg/subsystems/dfgm"
	"github.com/ex3-obc/fsw-core/pkg/subsystems/generic"
	"github.com/ex3-obc/fsw-core/pkg/subsystems/iris"
	"github.com/ex3-obc/fsw-core/pkg/subsystems/shell"
	"github.com/ex3-obc/fsw-core/pkg/subsystems/uhf"
	"github.com/spf13/cobra"
)

func main() {
	var (
		ipcPrefix  string
		subsystem  string
		device     string
		baudRate   int
		dataFile   string
		maxBody    int
		logLevel   string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "subsystem-handler",
		Short: "Subsystem Handler Runtime for one component of the on-board message fabric",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := appconfig.Bind(cmd, configPath)
			if err != nil {
				return err
			}

			log := applog.New(v.GetString("log-level"))
			name := v.GetString("subsystem")
			log.Info("subsystem-handler: starting",
				"ipc-prefix", v.GetString("ipc-prefix"), "subsystem", name)

			cap, closeCap, err := buildCapability(name, v.GetString("device"), v.GetInt("baud"), v.GetString("data-file"))
			if err != nil {
				return err
			}
			if closeCap != nil {
				defer closeCap()
			}

			sink, err := handler.NewResponseSink(v.GetString("ipc-prefix"), v.GetInt("max-body"))
			if err != nil {
				return err
			}

			rt, err := handler.New(log, v.GetString("ipc-prefix"), cap, sink)
			if err != nil {
				sink.Close()
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go waitForSignal(cancel)

			return rt.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&ipcPrefix, "ipc-prefix", "/run/fsw", "IPC socket directory")
	flags.StringVar(&subsystem, "subsystem", "", "subsystem to run: dfgm, iris, shell, uhf, adcs, eps, gps, deployables")
	flags.StringVar(&device, "device", "", "peripheral TTY device path (dfgm, iris only)")
	flags.IntVar(&baudRate, "baud", 115200, "peripheral TTY baud rate (dfgm, iris only)")
	flags.StringVar(&dataFile, "data-file", "/var/lib/fsw/dfgm.dat", "append-only data sink (dfgm only)")
	flags.IntVar(&maxBody, "max-body", 0, "per-fragment response payload budget (0 = package default)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&configPath, "config", "", "optional config file path")
	cmd.MarkFlagRequired("subsystem")

	if err := cmd.Execute(); err != nil {
		slog.Error("subsystem-handler: fatal", "err", err)
		os.Exit(1)
	}
}

// buildCapability constructs the handler.Capability named by
// subsystem, opening whatever peripheral or file it needs. The
// returned close func (nil for capabilities with nothing to release)
// must be deferred by the caller.
func buildCapability(subsystem, device string, baud int, dataFile string) (handler.Capability, func(), error) {
	switch subsystem {
	case "dfgm":
		if device == "" {
			return nil, nil, fmt.Errorf("subsystem-handler: dfgm requires --device")
		}
		port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
		if err != nil {
			return nil, nil, fmt.Errorf("subsystem-handler: open dfgm device: %w", err)
		}
		f, err := os.OpenFile(dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			port.Close()
			return nil, nil, fmt.Errorf("subsystem-handler: open dfgm data file: %w", err)
		}
		return dfgm.New(port, f), func() { port.Close(); f.Close() }, nil

	case "iris":
		if device == "" {
			return nil, nil, fmt.Errorf("subsystem-handler: iris requires --device")
		}
		port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
		if err != nil {
			return nil, nil, fmt.Errorf("subsystem-handler: open iris device: %w", err)
		}
		return iris.New(port), func() { port.Close() }, nil

	case "shell":
		return shell.New(nil), nil, nil

	case "uhf":
		return uhf.New(uhf.DefaultOpTable()), nil, nil

	case "adcs":
		return generic.New(component.ADCS, generic.DefaultTable()), nil, nil
	case "eps":
		return generic.New(component.EPS, generic.DefaultTable()), nil, nil
	case "gps":
		return generic.New(component.GPS, generic.DefaultTable()), nil, nil
	case "deployables":
		return generic.New(component.DEPLOYABLES, generic.DefaultTable()), nil, nil

	default:
		return nil, nil, fmt.Errorf("subsystem-handler: unknown subsystem %q", subsystem)
	}
}

func waitForSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
