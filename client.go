package geminidev

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Client ties an Oracle to the console and the filesystem. It keeps the
// conversation in an explicit Session and hands each oracle call a copy of
// the turns recorded so far.
type Client struct {
	oracle      Oracle
	config      Config
	session     *Session
	git         DiffSource
	httpClient  *http.Client
	renderer    Renderer
	logger      *zap.Logger
	input       *bufio.Reader
	output      io.Writer
	errorStream io.Writer
	transcript  io.Writer
}

// ClientOption is used to flexibly configure the Client, such as custom
// input/output handling, a different oracle or a preloaded session.
type ClientOption func(*Client) *Client

// WithConfig replaces the default configuration. It decides the provider
// and model when no oracle is given explicitly.
func WithConfig(cfg Config) ClientOption {
	return func(c *Client) *Client {
		c.config = cfg
		return c
	}
}

// WithOracle uses the given oracle instead of building one from the config.
func WithOracle(o Oracle) ClientOption {
	return func(c *Client) *Client {
		c.oracle = o
		return c
	}
}

// WithFixedResponse makes every prompt answer with response, without
// contacting a provider.
func WithFixedResponse(response string) ClientOption {
	return WithOracle(fixedOracle(response))
}

func WithOutput(output, err io.Writer) ClientOption {
	return func(c *Client) *Client {
		c.output = output
		c.errorStream = err
		return c
	}
}

func WithInput(input io.Reader) ClientOption {
	return func(c *Client) *Client {
		c.input = bufio.NewReader(input)
		return c
	}
}

// WithTranscript keeps a log of all conversation messages.
func WithTranscript(transcript io.Writer) ClientOption {
	return func(c *Client) *Client {
		c.transcript = transcript
		return c
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) *Client {
		c.logger = logger
		return c
	}
}

// WithRenderer sets the Markdown renderer used for answers.
func WithRenderer(r Renderer) ClientOption {
	return func(c *Client) *Client {
		c.renderer = r
		return c
	}
}

// WithSession continues an existing conversation.
func WithSession(s *Session) ClientOption {
	return func(c *Client) *Client {
		c.session = s
		return c
	}
}

// WithGit sets where diffs and commits come from.
func WithGit(d DiffSource) ClientOption {
	return func(c *Client) *Client {
		c.git = d
		return c
	}
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) *Client {
		c.httpClient = h
		return c
	}
}

var NewClient = DefaultClient

// DefaultClient builds a Client from the options. Without WithOracle or
// WithFixedResponse the oracle is created from the config, which must then
// carry credentials for its provider.
func DefaultClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	c := &Client{
		config:      DefaultConfig(),
		git:         Git{},
		httpClient:  http.DefaultClient,
		logger:      zap.NewNop(),
		input:       bufio.NewReader(os.Stdin),
		output:      os.Stdout,
		errorStream: os.Stderr,
		transcript:  io.Discard,
	}
	for _, opt := range opts {
		c = opt(c)
	}
	if c.session == nil {
		c.session = NewSession(c.config.ModelName())
	}
	if c.oracle == nil {
		o, err := NewOracle(ctx, c.config)
		if err != nil {
			return nil, err
		}
		c.oracle = o
	}
	if c.renderer == nil && !c.config.Plain {
		r, err := NewMarkdownRenderer(c.config.WordWrap)
		if err != nil {
			c.logger.Warn("markdown renderer unavailable", zap.Error(err))
		} else {
			c.renderer = r
		}
	}
	c.SetPurpose(c.config.SystemInstruction)
	return c, nil
}

// Session returns the conversation recorded by the client.
func (c *Client) Session() *Session {
	return c.session
}

// SaveHistory dumps the session to the configured history path, if any.
func (c *Client) SaveHistory() error {
	if c.config.HistoryPath == "" {
		return nil
	}
	c.logger.Debug("saving history", zap.String("path", c.config.HistoryPath), zap.Int("turns", len(c.session.Turns)))
	return c.session.Save(c.config.HistoryPath)
}

// SetPurpose sets the system instruction sent with every prompt.
func (c *Client) SetPurpose(prompt string) {
	if prompt == "" {
		return
	}
	c.session.Purpose = prompt
	c.Log(RoleSystem, "PURPOSE: "+prompt)
}

// History returns a copy of the turns recorded so far.
func (c *Client) History() []ChatMessage {
	return c.session.History()
}

// RecordMessage adds a turn to the conversation.
func (c *Client) RecordMessage(role string, message string) {
	c.session.Record(role, message)
	c.Log(role, message)
}

// RollbackLastMessage removes the last turn from the conversation.
func (c *Client) RollbackLastMessage() []ChatMessage {
	turns := c.session.Rollback()
	c.Log(RoleSystem, "Last message rolled back")
	return turns
}

// Complete sends prompt to the oracle along with the turns recorded so far
// and records both sides on success. A failed or blocked call leaves the
// conversation as it was.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	history := c.session.History()
	c.RecordMessage(RoleUser, prompt)
	c.logger.Debug("sending prompt",
		zap.String("session", c.session.ID),
		zap.Int("history", len(history)),
		zap.Int("tokens", GuessTokens(prompt)),
	)
	resp, err := c.oracle.Answer(ctx, Request{
		System:  c.session.Purpose,
		Prompt:  prompt,
		History: history,
	})
	if err != nil {
		c.RollbackLastMessage()
		return "", err
	}
	if resp.BlockReason != "" {
		if resp.Text == "" {
			c.RollbackLastMessage()
			return "", &BlockedError{Reason: resp.BlockReason}
		}
		c.logger.Warn("response flagged by provider", zap.String("reason", resp.BlockReason))
	}
	c.RecordMessage(RoleModel, resp.Text)
	return resp.Text, nil
}

func (c *Client) describeModel() string {
	return fmt.Sprintf("%s (%s)", c.config.Provider, c.config.ModelName())
}

// AskOptions configures Ask. Context is a file, directory or URL whose
// content is sent ahead of the prompt. When OutputFile is set the answer is
// saved there, reduced to a code block when one is present.
type AskOptions struct {
	Prompt     string
	Context    string
	OutputFile string
	Language   string
}

// Ask sends a question or code request and prints the rendered answer.
func (c *Client) Ask(ctx context.Context, opts AskOptions) (answer string, err error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return "", errors.New("must ask a question")
	}
	prompt := opts.Prompt
	if opts.Context != "" {
		msg, tokens, err := c.ContextMessage(ctx, opts.Context)
		if err != nil {
			return "", fmt.Errorf("error reading context %s: %w", opts.Context, err)
		}
		c.Info("Using context from: %s (estimated tokens: %d)", opts.Context, tokens)
		prompt = AskPrompt(msg, opts.Prompt)
	}

	c.Progress("Sending request to %s...", c.describeModel())
	answer, err = c.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.RenderMarkdown("Response", answer)

	if opts.OutputFile != "" {
		content := c.contentToSave(answer, opts.Language)
		if err := MessageToFile(content, opts.OutputFile); err != nil {
			return answer, fmt.Errorf("error writing to output file %s: %w", opts.OutputFile, err)
		}
		c.Success("Output successfully saved to: %s", opts.OutputFile)
	}
	return answer, nil
}

// contentToSave prefers the code block matching language, then the first
// block, then the whole answer.
func (c *Client) contentToSave(answer, language string) string {
	if language != "" {
		c.Info("Attempting to extract '%s' code block...", language)
	}
	block, ok := ExtractCode(answer, language)
	if language != "" && (!ok || !strings.EqualFold(block.Language, language)) {
		c.Warn("No specific '%s' code block found. Falling back to first block/full text.", language)
	}
	if !ok || block.Content == "" {
		return answer
	}
	return block.Content
}

// CommitOptions configures SuggestCommit. DiffArgs is passed to git diff;
// the empty string compares the working tree. Apply asks for confirmation
// and commits with the suggestion.
type CommitOptions struct {
	DiffArgs string
	Apply    bool
}

// SuggestCommit reads the diff of the repository and asks for a
// conventional commit message describing it.
func (c *Client) SuggestCommit(ctx context.Context, opts CommitOptions) (string, error) {
	if err := c.git.IsWorkTree(ctx); err != nil {
		return "", err
	}
	c.Info("Running: %s", strings.TrimSpace("git diff "+opts.DiffArgs))
	diff, err := c.git.Diff(ctx, opts.DiffArgs)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(diff) == "" {
		return "", fmt.Errorf("%w with 'git diff %s'", ErrNoChanges, opts.DiffArgs)
	}

	c.Progress("Generating commit message suggestion via %s...", c.describeModel())
	msg, err := c.Complete(ctx, CommitPrompt(diff))
	if err != nil {
		return "", err
	}
	msg = strings.TrimSpace(msg)
	c.Success("Suggested Commit Message(s):")
	c.LogOut(msg)

	if !opts.Apply {
		return msg, nil
	}
	if !c.Confirm("Accept Generated Message? (Y)es/(N)o", false) {
		c.LogOut("Commit rejected")
		return msg, nil
	}
	if err := c.git.Commit(ctx, msg); err != nil {
		return msg, err
	}
	c.Success("Changes committed.")
	return msg, nil
}

// ProjectOptions configures CreateProject. OutputDir defaults to the
// working directory.
type ProjectOptions struct {
	Description string
	OutputDir   string
}

// CreateProject asks for a project scaffold and writes its files under
// OutputDir. When the answer cannot be parsed, ErrParse is returned after
// the raw answer has been printed for inspection.
func (c *Client) CreateProject(ctx context.Context, opts ProjectOptions) (Result, error) {
	if strings.TrimSpace(opts.Description) == "" {
		return Result{}, errors.New("description cannot be empty")
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}

	c.Progress("Generating project structure via %s...", c.describeModel())
	answer, err := c.Complete(ctx, ProjectPrompt(opts.Description))
	if err != nil {
		return Result{}, err
	}
	c.RenderMarkdown("Proposed Project Structure", answer)

	res, err := Materialize(answer, dir)
	if err != nil {
		c.LogErr(fmt.Errorf("could not parse the project structure from the response: %w", err))
		c.Warn("Check the raw response below. Ensure the model followed the '%s path/file.ext' format.", FileMarker)
		c.LogOut(answer)
		return res, &ReportedError{Err: err}
	}
	c.logger.Debug("materialized project",
		zap.String("dir", dir),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
	)
	c.report(res, dir, opts.Description)
	return res, nil
}

func (c *Client) report(res Result, dir, description string) {
	for _, p := range res.Created {
		successColor.Fprint(c.output, "Created: ")
		fmt.Fprintln(c.output, filepath.Join(dir, p))
	}
	for _, s := range res.Skipped {
		errorColor.Fprint(c.output, "Skipped: ")
		fmt.Fprintln(c.output, s)
	}
	c.LogOut(fmt.Sprintf("%d file(s) created, %d skipped.", len(res.Created), len(res.Skipped)))
	if len(res.Created) > 0 {
		c.Success("Project structure based on '%s' created in '%s'.", description, dir)
	} else {
		c.Warn("No files were created based on the response.")
	}
}
