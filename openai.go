package geminidev

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIOracle answers prompts with OpenAI chat completion models.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

func NewOpenAIOracle(cfg Config) (*OpenAIOracle, error) {
	if cfg.OpenAIToken == "" {
		return nil, errors.New("must have OPENAI_TOKEN env var set or pass token explicitly")
	}
	oc := openai.DefaultConfig(cfg.OpenAIToken)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIOracle{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.ModelName(),
	}, nil
}

func (o *OpenAIOracle) Answer(ctx context.Context, req Request) (Response, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: openAIMessages(req),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusUnauthorized {
			err = fmt.Errorf("unauthorized. Please check your OPENAI_TOKEN env var or pass a token in explicitly: %w", err)
		}
		return Response{}, &CommunicationError{Provider: ProviderOpenAI, Err: err}
	}
	if len(resp.Choices) == 0 {
		return Response{}, &CommunicationError{Provider: ProviderOpenAI, Err: fmt.Errorf("invalid response: %+v", resp)}
	}
	choice := resp.Choices[0]
	out := Response{Text: choice.Message.Content}
	if choice.FinishReason == openai.FinishReasonContentFilter {
		out.BlockReason = string(choice.FinishReason)
	}
	return out, nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.History {
		role := m.Role
		switch role {
		case RoleModel:
			role = openai.ChatMessageRoleAssistant
		case "":
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
}
