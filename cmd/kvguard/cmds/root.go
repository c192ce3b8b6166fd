// Package cmds holds the kvguard command line.
package cmds

import (
	"context"
	"fmt"
	"kvguard/internal/backends"
	"kvguard/internal/metrics"
	"kvguard/internal/ports"
	"kvguard/internal/service"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Version = "0.3.0"

var (
	source ports.ConfigSource
	svc    *service.Service

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvguard",
		Short: "fault-tolerant remote key/value access",
		Long: fmt.Sprintf(`kvguard (v%s)

Reads and writes a Redis store through a retrying, instrumented client whose
connection settings come from a cached configuration source.

The configuration backend is chosen by CONFIG_BACKEND (file, redis, ddb).
Flags can also be set as KVGUARD_<FLAG> environment variables.`, Version),
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvguard",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvguard v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(getCmd, setCmd, delCmd, countCmd, probeCmd)
	RootCmd.AddCommand(indexCmd)
	RootCmd.AddCommand(configCmd)
	RootCmd.AddCommand(serveCmd)

	key := "environment"
	RootCmd.PersistentFlags().String(key, "prod", "configuration environment to read settings from")
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", "log level (debug, info, warn, error)")
	key = "slow-threshold"
	RootCmd.PersistentFlags().Duration(key, 2*time.Second, "operations slower than this are logged")
	key = "timeout"
	RootCmd.PersistentFlags().Duration(key, 30*time.Second, "timeout of a single command")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfig loads .env files and binds KVGUARD_* environment variables.
func initConfig() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Debug("The .env file not found.")
	}

	viper.SetEnvPrefix("kvguard")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	level, err := log.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if cmd == versionCmd {
		return nil
	}
	source, err = backends.ConfigSourceFromEnv(cmd.Context())
	return err
}

func teardown(_ *cobra.Command, _ []string) error {
	if svc == nil {
		return nil
	}
	err := svc.Close()
	svc = nil
	return err
}

// getService builds the store service on first use so that config-only commands
// do not need a reachable store.
func getService(ctx context.Context) (*service.Service, error) {
	if svc != nil {
		return svc, nil
	}
	s, err := service.New(ctx, source, service.Options{
		Environment:   viper.GetString("environment"),
		Sink:          metrics.NewOTelSink(nil),
		SlowThreshold: viper.GetDuration("slow-threshold"),
	})
	if err != nil {
		return nil, err
	}
	svc = s
	return svc, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, viper.GetDuration("timeout"))
}
