package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"tether/internal/cli"
	"tether/internal/config"

	// Registers the anthropic provider.
	_ "tether/internal/adapter/anthropic"

	"github.com/spf13/cobra"
)

var (
	chatEndpoint   string
	chatTransport  string
	chatProvider   string
	chatConfigPath string
	chatPromptPath string
	chatVerbose    bool
	chatNoColor    bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session against the tool server",
	Long: `The chat command opens a session against the configured MCP tool
server and starts an interactive conversation.

Each message you send runs one or more turns: the model may call server
tools, read resources, or retrieve prompts before answering. Tool rounds
are shown as they execute; non-text results (images, audio, binary blobs)
are reported as artifacts and never enter the model's context.

The connection settings come from your configuration file
(~/.config/tether/config.yaml by default) and can be overridden with
flags.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatEndpoint, "endpoint", "", "Tool server MCP endpoint URL (default: from config)")
	chatCmd.Flags().StringVar(&chatTransport, "transport", "", "Transport type: streamable-http or sse (default: from config)")
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "Model provider for this session (default: from config)")
	chatCmd.Flags().StringVar(&chatConfigPath, "config-path", "", "Configuration directory (default: ~/.config/tether)")
	chatCmd.Flags().StringVar(&chatPromptPath, "system-prompt", "", "System prompt file (watched for edits)")
	chatCmd.Flags().BoolVar(&chatVerbose, "verbose", false, "Enable debug logging")
	chatCmd.Flags().BoolVar(&chatNoColor, "no-color", false, "Disable colored output")
}

func runChat(cmd *cobra.Command, args []string) error {
	configPath := chatConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if chatEndpoint != "" {
		cfg.Server.Endpoint = chatEndpoint
	}
	if chatTransport != "" {
		cfg.Server.Transport = chatTransport
	}
	if chatPromptPath != "" {
		cfg.SystemPromptPath = chatPromptPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	provider := chatProvider
	if provider == "" {
		provider = cfg.DefaultProvider
	}
	if provider == "" {
		return fmt.Errorf("no provider selected: set defaultProvider in config or pass --provider")
	}

	systemPrompt, err := config.LoadSystemPrompt(cfg.SystemPromptPath)
	if err != nil {
		return err
	}

	// SIGINT is handled inside the REPL, where it cancels the active turn.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	return cli.RunChat(ctx, cli.ChatOptions{
		Config:       cfg,
		Provider:     provider,
		SystemPrompt: systemPrompt,
		Verbose:      chatVerbose,
		NoColor:      chatNoColor,
	})
}
