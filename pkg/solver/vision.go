package solver

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultVisionModel is used when no model is configured.
const DefaultVisionModel = "gpt-4o"

// visionPrompt keeps the reply machine-parseable; SanitizeAnswer strips
// whatever prose slips through anyway.
const visionPrompt = "Read the distorted characters in this CAPTCHA image. " +
	"Reply with only the characters, no spaces and no other text. " +
	"The characters are digits and uppercase letters."

// answerAlphabet matches everything outside the challenge alphabet
// (digits and uppercase letters).
var answerAlphabet = regexp.MustCompile(`[^0-9A-Z]`)

// Vision solves challenge images through a multimodal model behind an
// OpenAI-compatible endpoint.
type Vision struct {
	client openai.Client
	model  string
}

// VisionOption configures a Vision solver.
type VisionOption func(*Vision)

// WithModel overrides the model name.
func WithModel(model string) VisionOption {
	return func(v *Vision) {
		if model != "" {
			v.model = model
		}
	}
}

// NewVision creates a vision solver. An empty apiKey falls back to the
// client's environment handling; an empty baseURL means the standard OpenAI
// endpoint.
func NewVision(apiKey, baseURL string, opts ...VisionOption) *Vision {
	var reqOpts []option.RequestOption
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	v := &Vision{
		client: openai.NewClient(reqOpts...),
		model:  DefaultVisionModel,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Solve sends the image to the model and returns the sanitized answer.
func (v *Vision) Solve(ctx context.Context, image []byte) (string, error) {
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	completion, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(v.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(visionPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURI,
				}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("vision completion returned no choices")
	}

	answer := SanitizeAnswer(completion.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("vision model returned no recognizable characters")
	}
	return answer, nil
}

// CanAutoSolve reports true.
func (*Vision) CanAutoSolve() bool { return true }

// SanitizeAnswer uppercases the model's reply and strips everything outside
// the challenge alphabet.
func SanitizeAnswer(s string) string {
	return answerAlphabet.ReplaceAllString(strings.ToUpper(s), "")
}
