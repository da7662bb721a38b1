package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"voxd/internal/types"
)

// openaiGenerator calls the OpenAI chat completions API with audio input.
// Retries stay disabled so a failed request surfaces immediately.
type openaiGenerator struct {
	client openai.Client
}

func newOpenAIGenerator(cfg Config, httpClient *http.Client) *openaiGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openaiGenerator{client: openai.NewClient(opts...)}
}

func (g *openaiGenerator) Name() string { return "openai" }

func (g *openaiGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	format := strings.TrimPrefix(req.MIMEType, "audio/")
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Instruction),
		openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   base64.StdEncoding.EncodeToString(req.Audio),
			Format: openai.ChatCompletionContentPartInputAudioInputAudioFormat(format),
		}),
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	})
	if err != nil {
		return Response{}, classifyOpenAIErr(ctx, err, req.Model)
	}

	if len(resp.Choices) == 0 {
		return Response{}, remoteErr(types.KindRemoteTransport, "empty response from model",
			errors.New("no choices returned"))
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return Response{}, remoteErr(types.KindRemoteContentBlocked,
			fmt.Sprintf("model refused: %s", choice.Message.Refusal), nil)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return Response{}, remoteErr(types.KindRemoteTransport, "empty response from model",
			errors.New("choice has no text"))
	}

	return Response{
		Text: text,
		Usage: types.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// classifyOpenAIErr maps SDK errors to the agent's error kinds.
func classifyOpenAIErr(ctx context.Context, err error, model string) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind := classifyStatus(apiErr.StatusCode)
		return remoteErr(kind, kindMessage(kind, model), err)
	}
	return classifyTransportErr(ctx, err)
}
