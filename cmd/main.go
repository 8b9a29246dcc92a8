package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"aura-rag/internal/config"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "Semantic chunking pipeline and retrieval tools for the AURA assistant",
	Long: `Turns counselling textbooks into embedded, searchable chunks:
clean extracts and normalizes books, chunk splits them semantically,
insert embeds the chunks into the vector store. search and ask query it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func loadConfig(required ...config.Requirement) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath, os.LookupEnv, required...)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("config", configPath).Str("backend", cfg.RAG.Backend).Msg("loaded config")
	return cfg, nil
}
