package main

import (
	"fmt"
	"os"

	"github.com/espalierhq/espalier"
	"github.com/espalierhq/espalier/internal/logging"
	"github.com/espalierhq/espalier/pkg/adapters/file"
	redisAdapter "github.com/espalierhq/espalier/pkg/adapters/redis"
	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var rootCmd = &cobra.Command{
	Use:   "espalier",
	Short: "Espalier is a visual dataflow engine",
	Long:  `Espalier interprets boards of typed nodes connected through typed pins as executable programs.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("boards", ".", "Directory containing board files")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

// config is the optional YAML configuration for the CLI.
type config struct {
	Boards   string `yaml:"boards"`
	LogLevel string `yaml:"log_level"`
	Redis    struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

func loadConfig(cmd *cobra.Command) (config, error) {
	cfg := config{}
	cfg.Boards, _ = cmd.Flags().GetString("boards")
	cfg.LogLevel, _ = cmd.Flags().GetString("log-level")

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Boards == "" {
		cfg.Boards = "."
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func buildEngine(cmd *cobra.Command) (*espalier.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	boards, err := file.NewBoardStore(cfg.Boards)
	if err != nil {
		return nil, err
	}

	opts := []espalier.Option{
		espalier.WithLogger(logging.New(flow.ParseLogLevel(cfg.LogLevel).Slog())),
		espalier.WithBoardStore(boards),
	}
	if cfg.Redis.Addr != "" {
		opts = append(opts, espalier.WithRunStore(
			redisAdapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
		))
	}
	return espalier.New(opts...), nil
}
