package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"swisstransfer/pkg/client"
	"swisstransfer/pkg/config"
	"swisstransfer/pkg/log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfg     *config.Config
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "swisstransfer",
	Short: "Upload and download files through a SwissTransfer-compatible service",
	Long: `swisstransfer sends local files to a file-sharing service in chunks and
fetches shared files back through their link.

  Upload:    swisstransfer upload --password secret report.pdf data.csv
  Download:  swisstransfer download --password secret <link>
  Emulator:  swisstransfer serve --addr :8080

Settings are read from the config file, SWISSTRANSFER_* variables and a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("host", "", "service base URL")
	flags.Bool("debug", false, "enable debug logging")
	flags.Int64("bandwidth-limit", 0, "upload limit in bytes per second (0 = unlimited)")

	bindFlags(flags, map[string]string{
		"host":            "host",
		"debug":           "debug",
		"bandwidth-limit": "bandwidth_limit",
	})
}

// bindFlags maps command line flags onto config keys so they override file and env values.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatal().Err(err).Str("flag", name).Msg("Failed to bind flag")
		}
	}
}

// loadConfig layers .env, the config file and the environment over the defaults.
func loadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if cfg.Debug {
		log.SetDebugMode()
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("Using config file")
	}
	return nil
}

func newClient() *client.Client {
	return client.New(client.OptionsFromConfig(cfg))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
