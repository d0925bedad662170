package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quorum/cmd/quorum/chat"
	"quorum/internal/config"
	"quorum/internal/council"
	"quorum/internal/logging"
	"quorum/internal/model"
)

var (
	// Global flags
	flagAPIKey  string
	flagModel   string
	flagAgents  int
	flagVerbose bool
	flagConfig  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "quorum - a council of agents answering as one",
	Long: `quorum answers a question by fanning the query out to several
independent model agents, letting them critique each other's answers, and
streaming one synthesized, cited response.

Run without arguments to start the interactive chat interface.`,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Gemini API key (overrides config and environment)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model ID for all stages (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagAgents, "agents", 0, "number of concurrent agents (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default .quorum/config.yaml)")

	rootCmd.AddCommand(askCmd)
}

// loadConfig merges file, environment, and flag-level overrides.
func loadConfig() (config.Config, error) {
	path := flagConfig
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		path = config.DefaultPath(cwd)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagModel != "" {
		cfg.Stages.Initial.Model = flagModel
		cfg.Stages.Refinement.Model = flagModel
		cfg.Stages.Synthesis.Model = flagModel
	}
	if flagAgents > 0 {
		cfg.Agents = flagAgents
	}
	if flagVerbose {
		cfg.Logging.Verbose = true
	}

	if cfg.APIKey == "" {
		return config.Config{}, fmt.Errorf("no API key configured: set QUORUM_API_KEY, GEMINI_API_KEY, or --api-key")
	}
	return cfg, nil
}

func buildRunner(cfg config.Config, notify func()) *council.Runner {
	clientCfg := model.DefaultGeminiConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := model.NewGeminiClientWithConfig(clientCfg)

	return council.NewRunner(council.NewTurnLog(), client, cfg.StageConfigs(), council.Options{
		Agents:             cfg.Agents,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
		Notify:             notify,
	})
}

func runChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logs go to a file so the TUI owns the terminal.
	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = filepath.Join(os.TempDir(), fmt.Sprintf("quorum-%d.log", time.Now().Unix()))
	}
	logger, err = logging.InitFile(logPath, cfg.Logging.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	updates := make(chan struct{}, 1)
	notify := func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}
	runner := buildRunner(cfg, notify)

	m := chat.New(runner, updates)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
