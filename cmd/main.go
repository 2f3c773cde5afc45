package main

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-chat/internal/config"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "pdf-chat",
	Short:         "Chat with multiple PDFs",
	Long:          `pdf-chat indexes the text of PDF documents and answers questions about them with a language model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// credentials come from .env when present
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		setupLogger(cfg.Log, os.Stderr)
		log.Debug().Interface("config", cfg).Msg("Loaded config")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML config file")
}

func setupLogger(c config.LogConfig, out io.Writer) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if c.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("pdf-chat failed")
	}
}
