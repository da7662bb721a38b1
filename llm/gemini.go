package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voxd/internal/types"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// geminiGenerator calls the Gemini generateContent REST API directly.
type geminiGenerator struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Gemini request/response types
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *geminiFeedback   `json:"promptFeedback,omitempty"`
	UsageMetadata  *geminiUsage      `json:"usageMetadata,omitempty"`
	Error          *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

func (g *geminiGenerator) Name() string { return "gemini" }

func (g *geminiGenerator) base() string {
	if g.baseURL != "" {
		return strings.TrimRight(g.baseURL, "/")
	}
	return defaultGeminiBaseURL
}

// buildGeminiRequest pairs the instruction with the audio clip in a single
// user turn, audio inlined as base64.
func buildGeminiRequest(req Request) geminiRequest {
	return geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: req.Instruction},
				{InlineData: &geminiBlob{
					MIMEType: req.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(req.Audio),
				}},
			},
		}},
	}
}

func (g *geminiGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	jsonBody, err := json.Marshal(buildGeminiRequest(req))
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", g.base(), req.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return Response{}, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, classifyTransportErr(ctx, err)
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		if resp.StatusCode != http.StatusOK {
			kind := classifyStatus(resp.StatusCode)
			return Response{}, remoteErr(kind, kindMessage(kind, req.Model),
				fmt.Errorf("api error: %d", resp.StatusCode))
		}
		return Response{}, remoteErr(types.KindRemoteTransport, "malformed response from model",
			fmt.Errorf("unmarshal response: %w", err))
	}

	if resp.StatusCode != http.StatusOK || gr.Error != nil {
		status := resp.StatusCode
		detail := resp.Status
		if gr.Error != nil {
			if gr.Error.Code != 0 {
				status = gr.Error.Code
			}
			detail = gr.Error.Message
		}
		kind := classifyStatus(status)
		return Response{}, remoteErr(kind, kindMessage(kind, req.Model),
			fmt.Errorf("api error: %d - %s", status, detail))
	}

	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return Response{}, remoteErr(types.KindRemoteContentBlocked,
			fmt.Sprintf("request blocked by safety filter (%s)", gr.PromptFeedback.BlockReason), nil)
	}

	if len(gr.Candidates) == 0 {
		return Response{}, remoteErr(types.KindRemoteTransport, "empty response from model",
			errors.New("no candidates returned"))
	}

	cand := gr.Candidates[0]
	if geminiBlocked(cand.FinishReason) {
		return Response{}, remoteErr(types.KindRemoteContentBlocked,
			fmt.Sprintf("response blocked by safety filter (%s)", cand.FinishReason), nil)
	}

	text := strings.TrimSpace(joinGeminiParts(cand.Content.Parts))
	if text == "" {
		return Response{}, remoteErr(types.KindRemoteTransport, "empty response from model",
			errors.New("candidate has no text"))
	}

	return Response{Text: text, Usage: geminiToUsage(gr.UsageMetadata)}, nil
}

// geminiBlocked reports whether a finish reason means the reply was withheld.
func geminiBlocked(reason string) bool {
	switch reason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return true
	}
	return false
}

func joinGeminiParts(parts []geminiPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// geminiToUsage converts Gemini usage metadata to types.Usage.
func geminiToUsage(u *geminiUsage) types.Usage {
	if u == nil {
		return types.Usage{}
	}
	return types.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}
