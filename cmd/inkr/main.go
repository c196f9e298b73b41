package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/inkrlabs/inkr/internal/config"
	"github.com/inkrlabs/inkr/internal/conversation"
	"github.com/inkrlabs/inkr/internal/gateway"
	"github.com/inkrlabs/inkr/internal/llm"
	"github.com/inkrlabs/inkr/internal/models"
	"github.com/inkrlabs/inkr/internal/store"
)

// AskOptions carries injectable dependencies for testing.
type AskOptions struct {
	Completer llm.Completer
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "inkr",
	Short: "inkr - AI memory assistant for your notes",
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions about your notes, single message or REPL mode",
	RunE:  runAsk,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the full gateway (API, web UI, channels, enhancement job)",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show inkr status",
	RunE:  runStatus,
}

var messageFlag string

func init() {
	askCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single question to ask")
	rootCmd.AddCommand(askCmd, serveCmd, onboardCmd, statusCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	return runAskWithOptions(AskOptions{})
}

func runAskWithOptions(opts AskOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	completer := opts.Completer
	if completer == nil {
		if cfg.Provider.APIKey == "" {
			return fmt.Errorf("API key not set. Run 'inkr onboard' or set INKR_API_KEY")
		}
		completer = llm.NewClient(cfg.Provider)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	conv := conversation.NewManager(st, completer, cfg.Chat.ContextLimit)

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Single message mode
	if messageFlag != "" {
		return askOnce(conv, messageFlag, stdout, stderr)
	}

	// REPL mode
	fmt.Fprintln(stdout, "inkr ask (type 'exit' to quit)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if err := askOnce(conv, input, stdout, stderr); err != nil {
			continue
		}
	}
	return nil
}

func askOnce(conv *conversation.Manager, question string, stdout, stderr io.Writer) error {
	if err := conv.Send(question); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}

	msgs := conv.Messages()
	if n := len(msgs); n > 0 && msgs[n-1].Role == models.RoleAssistant {
		fmt.Fprintln(stdout, msgs[n-1].Content)
	}

	if ups := conv.FollowUps(); len(ups) > 0 {
		fmt.Fprintln(stdout, "\nYou could ask:")
		for _, s := range ups {
			fmt.Fprintf(stdout, "  - %s\n", s)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'inkr onboard' or set INKR_API_KEY")
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	st.Close()
	fmt.Printf("Database ready: %s\n", cfg.DBPath())

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set INKR_API_KEY environment variable")
	fmt.Println("  3. Run 'inkr ask -m \"What did I write about?\"' to test")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Database: %s\n", cfg.DBPath())
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("WebUI: enabled=%v\n", cfg.Channels.WebUI.Enabled)
	fmt.Printf("Enhance: enabled=%v schedule=%q\n", cfg.Enhance.Enabled, cfg.Enhance.Schedule)

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Println("Notes: database unavailable")
		return nil
	}
	defer st.Close()

	notes, err := st.LoadNotes()
	if err != nil {
		fmt.Println("Notes: unreadable")
		return nil
	}
	fmt.Printf("Notes: %d\n", len(notes))

	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "azure (default)"
	}
	return t
}
