package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nfrund/relay/internal/app"
	"github.com/nfrund/relay/internal/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Starts the relay and serves WebSocket clients on /ws until interrupted.

Configuration is read from the environment and an optional .env file.
--addr overrides RELAY_ADDR.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		addr := cfg.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return app.New(cfg, version).Run(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (host:port)")
	rootCmd.AddCommand(serveCmd)
}
