package geminidev

import (
	"context"
	"errors"
	"fmt"
)

// Oracle answers a prompt given the conversation so far.
type Oracle interface {
	Answer(ctx context.Context, req Request) (Response, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, req Request) (Response, error)

func (f OracleFunc) Answer(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Request is a single prompt. History holds the prior turns of the session
// and is owned by the caller; oracles must not modify it.
type Request struct {
	System  string
	Prompt  string
	History []ChatMessage
}

// Response is the text of an answer. BlockReason is set when the provider
// withheld or cut short the answer on content-safety grounds.
type Response struct {
	Text        string
	BlockReason string
}

// CommunicationError wraps a failure to reach the provider or to make sense
// of its reply.
type CommunicationError struct {
	Provider string
	Err      error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("communicating with %s: %v", e.Provider, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// ReportedError wraps an error whose details were already shown to the user.
// Callers still treat it as a failure but do not print it again.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string {
	return e.Err.Error()
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

func isReported(err error) bool {
	var r *ReportedError
	return errors.As(err, &r)
}

// BlockedError is returned when the provider refused to answer.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("response blocked by the provider (prompt feedback: %s)", e.Reason)
}

type fixedOracle string

func (f fixedOracle) Answer(context.Context, Request) (Response, error) {
	return Response{Text: string(f)}, nil
}

// NewOracle builds the oracle selected by cfg.Provider.
func NewOracle(ctx context.Context, cfg Config) (Oracle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIOracle(cfg)
	default:
		return NewGeminiOracle(ctx, cfg)
	}
}
