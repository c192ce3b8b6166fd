package cmds

import (
	"kvguard/internal/api"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP admin server",
	Long:  `Runs the HTTP admin server (health probe, config, kv and index reads) until SIGINT or SIGTERM.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		s, err := getService(cmd.Context())
		if err != nil {
			return err
		}
		stop, done := api.RunServerInterruptible(viper.GetInt("port"), s)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case err := <-done:
			return err
		case got := <-sig:
			log.WithField("signal", got.String()).Info("shutting down")
			stop <- struct{}{}
			return <-done
		}
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "port the admin server listens on")
}
