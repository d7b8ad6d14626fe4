package geminidev

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrToolNotFound  = errors.New("'git' command not found. Is Git installed and in your PATH?")
	ErrNotRepository = errors.New("not a git repository")
	ErrNoChanges     = errors.New("no changes detected")
)

// ExitError is a git invocation that exited with a non-zero status.
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("error running %s (code: %d): %s", strings.Join(e.Args, " "), e.Code, strings.TrimSpace(e.Stderr))
}

// DiffSource provides the changes a commit message is written for.
type DiffSource interface {
	IsWorkTree(ctx context.Context) error
	Diff(ctx context.Context, args string) (string, error)
	Commit(ctx context.Context, message string) error
}

// Git runs the git binary found on PATH in Dir (the working directory when
// empty).
type Git struct {
	Dir string
}

func (g Git) IsWorkTree(ctx context.Context) error {
	_, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return ErrNotRepository
	}
	return err
}

// Diff runs git diff with args split on whitespace, so "--staged" compares
// the index and "" the working tree.
func (g Git) Diff(ctx context.Context, args string) (string, error) {
	return g.run(ctx, append([]string{"diff"}, strings.Fields(args)...)...)
}

func (g Git) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "-m", message)
	return err
}

func (g Git) run(ctx context.Context, args ...string) (string, error) {
	bin, err := exec.LookPath("git")
	if err != nil {
		return "", ErrToolNotFound
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", &ExitError{
			Args:   append([]string{"git"}, args...),
			Code:   exitErr.ExitCode(),
			Stderr: stderr.String(),
		}
	}
	if err != nil {
		return "", err
	}
	return stdout.String(), nil
}
