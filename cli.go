package geminidev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Main runs the command line with the process arguments and streams and
// returns the exit code.
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Run executes the command line described by args. Extra options are applied
// after those derived from flags and config, so callers can swap the oracle
// or the git source.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, opts ...ClientOption) int {
	a := &app{extra: opts}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if tErr := a.teardown(); err == nil {
		err = tErr
	}
	if err != nil && !isReported(err) {
		errorColor.Fprintln(stderr, "Error:", err)
		var blocked *BlockedError
		if errors.As(err, &blocked) {
			errorColor.Fprintln(stderr, "Prompt Feedback:", blocked.Reason)
		}
	}
	if err != nil {
		return 1
	}
	return 0
}

type app struct {
	configPath  string
	provider    string
	model       string
	historyPath string
	transcript  string
	plain       bool
	verbose     bool

	extra   []ClientOption
	client  *Client
	logger  *zap.Logger
	closers []io.Closer
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "geminidev",
		Short: "Gemini-Dev: your AI-powered CLI development assistant",
		Long: `Gemini-Dev forwards prompts to a hosted chat model, renders the answers,
saves code blocks to disk, suggests commit messages for your changes and
scaffolds whole projects.

Run without arguments for an interactive menu or specify a command directly.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.RunMenu(cmd.Context())
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", DefaultConfigPath(), "Path to the YAML config file")
	pf.StringVar(&a.provider, "provider", "", "Model provider: gemini or openai")
	pf.StringVarP(&a.model, "model", "m", "", "Model name (default depends on the provider)")
	pf.StringVar(&a.historyPath, "history", "", "JSON file to load and save the conversation history")
	pf.StringVar(&a.transcript, "transcript", "", "File to append a transcript of the conversation to")
	pf.BoolVar(&a.plain, "plain", false, "Print responses as raw Markdown")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(a.askCommand(), a.commitCommand(), a.createProjectCommand())
	return root
}

func (a *app) askCommand() *cobra.Command {
	var opts AskOptions
	cmd := &cobra.Command{
		Use:   "ask PROMPT...",
		Short: "Ask a question or request code generation/explanation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Prompt = strings.Join(args, " ")
			_, err := a.client.Ask(cmd.Context(), opts)
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.Context, "context-file", "c", "", "File, directory or URL to provide as context")
	cmd.Flags().StringVarP(&opts.OutputFile, "output-file", "o", "", "Path to save the generated code/output directly")
	cmd.Flags().StringVarP(&opts.Language, "extract-language", "l", "", "Attempt to extract code only of this language (e.g., python, bash)")
	return cmd
}

func (a *app) commitCommand() *cobra.Command {
	var opts CommitOptions
	cmd := &cobra.Command{
		Use:     "commit",
		Aliases: []string{"git-commit-msg"},
		Short:   "Suggest a Git commit message based on changes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.client.SuggestCommit(cmd.Context(), opts)
			if errors.Is(err, ErrNoChanges) {
				a.client.Warn("%v", err)
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.DiffArgs, "diff-args", "--staged", `Arguments for git diff. Use "" for unstaged changes`)
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "Offer to commit with the suggested message")
	return cmd
}

func (a *app) createProjectCommand() *cobra.Command {
	var opts ProjectOptions
	cmd := &cobra.Command{
		Use:   "create-project DESCRIPTION...",
		Short: "Generate a basic project structure based on a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Description = strings.Join(args, " ")
			res, err := a.client.CreateProject(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(res.Created) == 0 {
				return &ReportedError{Err: errors.New("no files were created")}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "d", ".", "Directory to create the project in")
	return cmd
}

// setup loads the configuration, applies flag overrides and builds the
// client shared by every command.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.logger = NewLogger(cmd.ErrOrStderr(), a.verbose)
	if !needsClient(cmd) {
		return nil
	}

	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.provider != "" {
		cfg.Provider = a.provider
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	if a.historyPath != "" {
		cfg.HistoryPath = a.historyPath
	}
	if a.transcript != "" {
		cfg.TranscriptPath = a.transcript
	}
	if a.plain {
		cfg.Plain = true
	}
	a.logger.Debug("configuration loaded",
		zap.String("config", a.configPath),
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.ModelName()),
	)

	opts := []ClientOption{
		WithConfig(cfg),
		WithLogger(a.logger),
		WithInput(cmd.InOrStdin()),
		WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}
	if cfg.HistoryPath != "" {
		s, err := LoadSession(cfg.HistoryPath, cfg.ModelName())
		if err != nil {
			return err
		}
		opts = append(opts, WithSession(s))
	}
	if cfg.TranscriptPath != "" {
		f, err := os.OpenFile(cfg.TranscriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open transcript: %w", err)
		}
		a.closers = append(a.closers, f)
		opts = append(opts, WithTranscript(f))
	}
	a.client, err = NewClient(cmd.Context(), append(opts, a.extra...)...)
	return err
}

// needsClient is false for cobra's own help and completion commands, which
// must work without provider credentials.
func needsClient(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	for p := cmd.Parent(); p != nil; p = p.Parent() {
		if p.Name() == "completion" {
			return false
		}
	}
	return true
}

func (a *app) teardown() error {
	var err error
	if a.client != nil {
		err = a.client.SaveHistory()
	}
	for _, c := range a.closers {
		if cErr := c.Close(); err == nil {
			err = cErr
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}
