package geminidev

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiOracle answers prompts with Google's Gemini models.
type GeminiOracle struct {
	client *genai.Client
	model  string
	safety []*genai.SafetySetting
}

// NewGeminiOracle creates a Gemini client from cfg. The API key comes from
// GOOGLE_API_KEY or GEMINI_API_KEY; BaseURL, when set, replaces the public
// endpoint.
func NewGeminiOracle(ctx context.Context, cfg Config) (*GeminiOracle, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY not found in environment or .env file")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiOracle{
		client: client,
		model:  cfg.ModelName(),
		safety: safetySettings(genai.HarmBlockThreshold(cfg.SafetyThreshold)),
	}, nil
}

func safetySettings(threshold genai.HarmBlockThreshold) []*genai.SafetySetting {
	if threshold == "" {
		threshold = genai.HarmBlockThresholdBlockMediumAndAbove
	}
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, len(categories))
	for i, c := range categories {
		settings[i] = &genai.SafetySetting{Category: c, Threshold: threshold}
	}
	return settings
}

func (g *GeminiOracle) Answer(ctx context.Context, req Request) (Response, error) {
	config := &genai.GenerateContentConfig{SafetySettings: g.safety}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(req), config)
	if err != nil {
		return Response{}, &CommunicationError{Provider: ProviderGemini, Err: err}
	}
	return geminiResponse(resp), nil
}

// geminiContents turns the session history and the new prompt into Gemini
// contents. System turns travel in the config instead.
func geminiContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleModel, RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

func geminiResponse(resp *genai.GenerateContentResponse) Response {
	if resp == nil {
		return Response{}
	}
	out := Response{Text: resp.Text()}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(fb.BlockReason)
		if msg := strings.TrimSpace(fb.BlockReasonMessage); msg != "" {
			reason += ": " + msg
		}
		out.BlockReason = reason
		return out
	}
	for _, c := range resp.Candidates {
		if c != nil && c.FinishReason == genai.FinishReasonSafety {
			out.BlockReason = string(c.FinishReason)
			break
		}
	}
	return out
}
