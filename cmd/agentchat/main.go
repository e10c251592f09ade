package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/watercrawl/WaterCrawl-sub003/internal/config"
)

// app carries the configuration and logger shared by every subcommand
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	logFile *os.File

	profilePath string
	agentID     string
	apiURL      string
	debug       bool
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentchat",
		Short: "Chat with a WaterCrawl agent from the terminal",
		Long: `agentchat sends queries to a WaterCrawl agent and renders the reply
transcript, including tool calls, tool results and structured output.
Replies can be streamed as they are generated or fetched in one response.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logFile != nil {
				a.logFile.Close()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.profilePath, "config", "agentchat.yaml", "profile file (optional)")
	flags.StringVar(&a.agentID, "agent", "", "agent id (overrides WATERCRAWL_AGENT_ID)")
	flags.StringVar(&a.apiURL, "api-url", "", "API base URL (overrides WATERCRAWL_API_URL)")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newChatCommand(a))
	rootCmd.AddCommand(newAskCommand(a))
	rootCmd.AddCommand(newReplayCommand(a))

	return rootCmd
}

// setup loads configuration in precedence order env < profile < flags and
// opens the log file
func (a *app) setup(cmd *cobra.Command) error {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()

	cfg := config.Load()
	profile, err := config.LoadProfile(a.profilePath, !cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if err := profile.Apply(cfg); err != nil {
		return err
	}

	if a.agentID != "" {
		cfg.AgentID = a.agentID
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = a.debug
	}
	a.cfg = cfg

	logFile, err := config.SetupLogFile(cfg.LogDir, "agentchat", cfg.MaxLogFiles)
	if err != nil {
		// The terminal belongs to the transcript, so without a file logs are dropped
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
		a.logger = slog.New(slog.DiscardHandler)
		return nil
	}
	a.logFile = logFile
	a.logger = config.NewCLILogger(logFile, cfg.Debug, false)
	a.logger.Debug("configuration loaded",
		"api_url", cfg.APIURL,
		"agent_id", cfg.AgentID,
		"response_mode", cfg.ResponseMode,
		"log_file", logFile.Name(),
	)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
