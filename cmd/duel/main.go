// duel pairs anonymous websocket clients into two-player rooms.
//
// Usage:
//
//	duel serve                 - Run the websocket server
//	duel historian             - Persist room history from Redis into Postgres
//	duel bot --name <room>     - Connect a test client and print what it receives
//
// Global flags:
//
//	--config <path>     - YAML config file (default: ./duel.yaml if present)
//	--log-level <lvl>   - Override the configured log level
package main

import (
	"fmt"
	"os"

	"github.com/jason-s-yu/duel/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "duel",
	Short: "Duel - a two-player realtime session coordinator",
	Long: `Duel matches connected websocket clients into two-player rooms,
relays their actions, tracks losses and rematches, and cleans up
after disconnects.

Available commands:
  serve      - Run the websocket server
  historian  - Move room history from Redis into Postgres
  bot        - Connect a test client

Examples:
  duel serve
  duel serve --config ./duel.yaml --log-level debug
  duel historian
  duel bot --url ws://localhost:8080/play/ws --name den`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historianCmd)
	rootCmd.AddCommand(botCmd)
}

// setup loads the configuration and builds the process logger.
func setup() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
		if err := cfg.Validate(); err != nil {
			return cfg, nil, err
		}
	}

	logger := logrus.New()
	logger.SetLevel(cfg.Level())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return cfg, logger, nil
}
