// Package cli implements the clankers command line: flag and config
// handling, the fleet run and its periodic status report.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/clankers-project/clankers/internal/config"
)

const Banner = `##########################################################################
#   /$$$$$$  /$$        /$$$$$$  /$$   /$$ /$$   /$$ /$$$$$$$$ /$$$$$$$  #
#  /$$__  $$| $$       /$$__  $$| $$$ | $$| $$  /$$/| $$_____/| $$__  $$ #
# | $$  \__/| $$      | $$  \ $$| $$$$| $$| $$ /$$/ | $$      | $$  \ $$ #
# | $$      | $$      | $$$$$$$$| $$ $$ $$| $$$$$/  | $$$$$   | $$$$$$$/ #
# | $$      | $$      | $$__  $$| $$  $$$$| $$  $$  | $$__/   | $$__  $$ #
# | $$    $$| $$      | $$  | $$| $$\  $$$| $$\  $$ | $$      | $$  \ $$ #
# |  $$$$$$/| $$$$$$$$| $$  | $$| $$ \  $$| $$ \  $$| $$$$$$$$| $$  | $$ #
# \______/ |________/|__/  |__/|__/  \__/|__/  \__/|________/|__/  |__/  #
##########################################################################`

const longHelp = Banner + `

Connects a fleet of offline-mode players to a Minecraft server (protocol 774)
and has each of them chat on a fixed interval. A clanker that is kicked or
disconnected is replaced immediately under a new name.

networking:
  --destination HOST:PORT     required  server to connect to

performance:
  --threads N                 optional  worker threads, default is the number of cores

clankers:
  --clankers N                required  number of concurrent clankers
  --name-list FILE            optional  names, one per line; default is random a-z, A-Z, 0-9
  --message-list FILE         required  chat messages, one per line
  --message-interval MILLIS   required  delay between two messages of one clanker

Every option can also be set in a config file (--config) or through
CLANKERS_* environment variables, e.g. CLANKERS_DESTINATION or CLANKERS_LOG_LEVEL.`

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM, and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	}
	return ExitCode(err)
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "clankers",
		Short:         "Minecraft chat load generator",
		Long:          longHelp,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Banner)
			return run(cmd.Context(), cmd, v)
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidArguments(err)
	})

	flags := rootCmd.Flags()
	flags.String("destination", "", "server address as HOST:PORT")
	flags.Int("threads", runtime.NumCPU(), "number of worker threads")
	flags.Int("clankers", 0, "number of concurrent clankers")
	flags.String("name-list", "", "file with one name per line")
	flags.String("message-list", "", "file with one chat message per line")
	flags.Int("message-interval", 0, "milliseconds between two messages of one clanker")
	flags.String("config", "", "config file (json, toml or yaml)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.String("log-dir", "logs", "directory for log files")
	flags.Int("report-interval", config.DefaultReportInterval, "seconds between status reports, 0 disables them")
	flags.String("api-listen", "", "address of the status API, e.g. 127.0.0.1:8080; empty disables it")
	flags.String("mqtt-broker", "", "MQTT broker URL for telemetry, e.g. tcp://localhost:1883; empty disables it")
	flags.String("mqtt-client-id", "", "MQTT client id")

	bindFlags(v, flags, map[string]string{
		config.KeyDestination:     "destination",
		config.KeyThreads:         "threads",
		config.KeyClankers:        "clankers",
		config.KeyNameList:        "name-list",
		config.KeyMessageList:     "message-list",
		config.KeyMessageInterval: "message-interval",
		config.KeyLogLevel:        "log-level",
		config.KeyLogDirectory:    "log-dir",
		config.KeyReportInterval:  "report-interval",
		config.KeyAPIListen:       "api-listen",
		config.KeyMQTTBroker:      "mqtt-broker",
		config.KeyMQTTClientID:    "mqtt-client-id",
	})

	rootCmd.PreRun = func(cmd *cobra.Command, _ []string) {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			v.SetConfigFile(path)
		}
	}

	return rootCmd
}

// bindFlags binds each config key to its flag. A flag that was not set on
// the command line leaves the key to the environment, config file or default.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
