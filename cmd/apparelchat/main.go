package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ApparelChat/internal/chatbot"
	"ApparelChat/internal/config"
	"ApparelChat/internal/session"
	"ApparelChat/internal/tui"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

type rootFlags struct {
	configPath string
	apiURL     string
	mode       string
	logDir     string
	debug      bool
	plain      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "apparelchat",
		Short:         "ApparelChat, a terminal client for the apparel shopping assistant",
		Long:          "ApparelChat chats with the apparel assistant service, shows product galleries and runs virtual try-on with your own photos.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			return runChat(cmd, cfg)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&flags.apiURL, "api-url", "", "Assistant service base URL (overrides "+config.EnvAPIURL+")")
	pf.StringVar(&flags.mode, "mode", "", "Interaction mode (standard|vto)")
	pf.StringVar(&flags.logDir, "log-dir", "", "Directory for log, trace and metric files")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "Use the line-mode REPL even on a terminal")

	cmd.AddCommand(newAskCmd(flags))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// load resolves configuration: flags win over the environment, which wins
// over the config file, which wins over the defaults.
func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.apiURL != "" {
		cfg.APIURL = f.apiURL
	}
	if f.mode != "" {
		mode, ok := session.ParseMode(f.mode)
		if !ok {
			return nil, fmt.Errorf("invalid --mode %q (standard|vto)", f.mode)
		}
		cfg.Mode = mode
	}
	if f.logDir != "" {
		cfg.LogDir = f.logDir
	}
	if f.debug {
		cfg.Debug = true
	}
	if f.plain {
		cfg.Plain = true
	}
	return cfg, cfg.Validate()
}

func runChat(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	cb, err := chatbot.NewChatBot(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}
	defer cb.Close()

	if !cfg.Plain && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		return tui.Run(ctx, cb)
	}
	return cb.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apparelchat %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
