package cmd

import (
	"fmt"
	"os"

	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/logging"
	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3tx/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir     string
	cfg        *config.Config
	log        = zap.NewNop()
	walletFlag string
	envFile    string
	logLevel   string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3tx",
	Short: "Ethereum transaction queue for the terminal",
	Long: `w3tx keeps a local queue of the transactions you send.

  Send ETH and ERC-20 transactions with correctly sequenced nonces,
  watch them until they confirm, speed up or cancel stuck ones, and fire
  rapid batches of transfers.

Settings live in ~/.w3tx/config.json. A .env file in the working
directory may set W3TX_RPC_URL, W3TX_WALLET and W3TX_LOG_LEVEL.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config (skip for commands that don't need it).
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if err := config.LoadEnvFiles(envFile); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		level := cfg.Level()
		if logLevel != "" {
			level = logLevel
		}
		log, err = logging.New(level, logging.Format(cfg.LogFormat))
		if err != nil {
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(ui.Banner())
		return cmd.Help()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync() //nolint:errcheck
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errLine(err))
		os.Exit(1)
	}
}

func init() {
	// W3TX_CONFIG_DIR env var overrides --config flag.
	if envDir := os.Getenv(config.EnvConfigDir); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.w3tx)")
	rootCmd.PersistentFlags().StringVarP(&walletFlag, "wallet", "w", "", "wallet name (default: config)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with W3TX_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(
		walletCmd,
		queueCmd,
		sendCmd,
		batchCmd,
		tokenCmd,
		eventsCmd,
		signCmd,
		rpcCmd,
	)
}
