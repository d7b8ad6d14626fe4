package geminidev

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Action is one entry of the interactive menu.
type Action interface {
	Execute(context.Context, *Client) error
}

type AskAction struct{}

func (AskAction) Execute(ctx context.Context, c *Client) error {
	prompt, err := c.ReadRequired("Enter your prompt:", "Prompt cannot be empty.")
	if err != nil {
		return err
	}
	opts := AskOptions{Prompt: prompt}
	if opts.Context, err = c.ReadAnswer("Context file, directory or URL (optional, press Enter to skip):"); err != nil {
		return err
	}
	if opts.OutputFile, err = c.ReadAnswer("Output file path (optional, press Enter to skip):"); err != nil {
		return err
	}
	if opts.OutputFile != "" {
		if opts.Language, err = c.ReadAnswer("Extract specific language code (optional, e.g., python):"); err != nil {
			return err
		}
	}
	_, err = c.Ask(ctx, opts)
	return err
}

type CommitAction struct{}

func (CommitAction) Execute(ctx context.Context, c *Client) error {
	opts := CommitOptions{DiffArgs: "--staged"}
	if !c.Confirm("Use staged changes (--staged)? (Y/n)", true) {
		custom, err := c.ReadAnswer("Enter custom 'git diff' arguments (optional, e.g., 'HEAD~1'):")
		if err != nil {
			return err
		}
		opts.DiffArgs = custom
	}
	_, err := c.SuggestCommit(ctx, opts)
	return err
}

type ProjectAction struct{}

func (ProjectAction) Execute(ctx context.Context, c *Client) error {
	desc, err := c.ReadRequired("Describe the project you want to create:", "Description cannot be empty.")
	if err != nil {
		return err
	}
	dir, err := c.ReadAnswer("Output directory (default: current):")
	if err != nil {
		return err
	}
	_, err = c.CreateProject(ctx, ProjectOptions{Description: desc, OutputDir: dir})
	return err
}

type Exit struct{}

func (Exit) Execute(ctx context.Context, c *Client) error {
	c.Log(RoleUser, "*exit*")
	return io.EOF
}

var menu = []struct {
	key   string
	label string
}{
	{"ask", "Ask Gemini (code generation, explanations, ...)"},
	{"commit", "Suggest Git commit message"},
	{"create-project", "Create new project structure"},
	{"exit", "Exit"},
}

// GetAction maps a menu choice, by number or by name, to its Action. It
// returns nil for anything else.
func (c *Client) GetAction(choice string) Action {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "1", "ask":
		return AskAction{}
	case "2", "commit", "git-commit-msg":
		return CommitAction{}
	case "3", "create-project", "project":
		return ProjectAction{}
	case "4", "exit", "quit", "q":
		return Exit{}
	default:
		return nil
	}
}

// RunMenu repeatedly offers the actions until the user exits, the input
// ends or ctx is cancelled. Errors from an action are reported and the menu
// carries on.
func (c *Client) RunMenu(ctx context.Context) error {
	c.Success("Welcome to Gemini-Dev Interactive Mode!")
	for {
		if err := ctx.Err(); err != nil {
			c.Warn("Operation cancelled by user. Exiting interactive mode.")
			return nil
		}
		for i, item := range menu {
			c.Info("  %d) %s", i+1, item.label)
		}
		choice, err := c.ReadAnswer("Choose an action:")
		if err != nil {
			c.LogOut()
			c.Progress("Exiting interactive mode.")
			return nil
		}
		action := c.GetAction(choice)
		if action == nil {
			c.Warn("Invalid choice %q. Please try again.", choice)
			continue
		}
		err = action.Execute(ctx, c)
		if errors.Is(err, io.EOF) {
			c.Progress("Exiting interactive mode.")
			return nil
		}
		switch {
		case errors.Is(err, ErrNoChanges):
			c.Warn("%v", err)
		case errors.Is(err, context.Canceled):
			c.Warn("Operation cancelled by user. Exiting interactive mode.")
			return nil
		case err != nil && !isReported(err):
			c.LogErr(err)
		}
		if !c.Confirm("Perform another action? (Y/n)", true) {
			c.Progress("Exiting interactive mode.")
			return nil
		}
	}
}

// ReadAnswer prints question and reads one trimmed line of input. io.EOF is
// returned only when the input ends before any text.
func (c *Client) ReadAnswer(question string) (string, error) {
	c.Prompt(question)
	line, err := c.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadRequired asks until a non-empty answer is given.
func (c *Client) ReadRequired(question, invalid string) (string, error) {
	for {
		answer, err := c.ReadAnswer(question)
		if err != nil || answer != "" {
			return answer, err
		}
		c.Warn("%s", invalid)
	}
}

// Confirm asks a yes/no question. An empty answer picks def; the end of the
// input counts as no.
func (c *Client) Confirm(question string, def bool) bool {
	answer, err := c.ReadAnswer(question)
	if err != nil {
		return false
	}
	if answer == "" {
		return def
	}
	return strings.HasPrefix(strings.ToUpper(answer), "Y")
}
