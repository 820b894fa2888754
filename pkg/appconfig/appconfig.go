// Package appconfig binds every cmd/ binary's cobra flags through
// viper, giving flags > environment > config file > defaults
// precedence — the layered resolution
// dsmmcken-dh-cli/go_src/internal/config/resolve.go performs by hand
// for a single setting, generalized here across a whole flag set the
// way marmos91-dittofs/pkg/config wires viper for its server.
package appconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix every binary shares,
// e.g. FSW_IPC_PREFIX for the --ipc-prefix flag.
const EnvPrefix = "FSW"

// Bind creates a viper instance scoped to cmd, with environment
// variables read under EnvPrefix and, if set, a config file at
// configPath layered beneath flags and env. Call once per binary from
// the command's RunE, after the flags have been parsed.
func Bind(cmd *cobra.Command, configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("appconfig: read config file %s: %w", configPath, err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("appconfig: bind flags: %w", err)
	}
	return v, nil
}
