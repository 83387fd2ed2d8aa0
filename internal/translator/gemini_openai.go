// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modelgate/modelgate/internal/apischema/gemini"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// geminiSystemInstructionModels lists the models that accept a top-level
// system_instruction. For everything else system turns are downgraded to
// user turns.
var geminiSystemInstructionModels = map[string]struct{}{
	"gemini-2.0-flash":                    {},
	"gemini-2.0-flash-exp":                {},
	"gemini-2.0-flash-thinking-exp-01-21": {},
}

// newGeminiTranslator translates between the Google Generative Language API
// and the OpenAI chat schema.
func newGeminiTranslator(binding *modelconfig.Binding) *geminiTranslator {
	return &geminiTranslator{binding: binding}
}

type geminiTranslator struct {
	binding *modelconfig.Binding
	stream  bool
	created int64
	id      string
}

// RequestBody implements [OpenAIChatTranslator.RequestBody].
func (g *geminiTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	g.stream = req.Stream
	g.created = time.Now().Unix()
	g.id = "chatcmpl-gemini-" + uuid.NewString()

	out := &gemini.GenerateContentRequest{
		GenerationConfig: gemini.GenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.Stop.Sequences(),
		},
	}
	for _, category := range gemini.SafetyCategories {
		out.SafetySettings = append(out.SafetySettings, gemini.SafetySetting{
			Category:  category,
			Threshold: gemini.ThresholdBlockNone,
		})
	}

	_, useSystemInstruction := geminiSystemInstructionModels[g.binding.Model]
	var systemTexts []string
	downgraded := false
	for i := range req.Messages {
		m := &req.Messages[i]
		role := string(m.Role)
		switch m.Role {
		case openai.MessageRoleSystem:
			if useSystemInstruction {
				if t := m.Content.Text(); t != "" {
					systemTexts = append(systemTexts, t)
				}
				continue
			}
			role = "user"
			downgraded = true
		case openai.MessageRoleAssistant:
			role = "model"
		}
		parts := geminiParts(m.Content)
		if len(parts) == 0 {
			continue
		}
		out.Contents = append(out.Contents, gemini.Content{Role: role, Parts: parts})
	}
	if len(systemTexts) > 0 {
		out.SystemInstruction = &gemini.SystemInstruction{
			Parts: []gemini.Part{{Text: strings.Join(systemTexts, "\n")}},
		}
	}
	// A downgraded system turn leaves the transcript ending on a user turn
	// pair; close it with a short model acknowledgement.
	if downgraded && len(out.Contents) > 0 {
		out.Contents = append(out.Contents, gemini.Content{
			Role:  "model",
			Parts: []gemini.Part{{Text: "Okay"}},
		})
	}

	if len(req.Tools) > 0 {
		decls := make([]gemini.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, gemini.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			})
		}
		out.Tools = []gemini.Tool{{FunctionDeclarations: decls}}
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}
	return body, nil
}

func geminiParts(content openai.MessageContent) []gemini.Part {
	if content.Parts == nil {
		if content.Value == "" {
			return nil
		}
		return []gemini.Part{{Text: content.Value}}
	}
	parts := make([]gemini.Part, 0, len(content.Parts))
	for _, p := range content.Parts {
		switch {
		case p.Text != nil:
			parts = append(parts, gemini.Part{Text: p.Text.Text})
		case p.ImageURL != nil:
			parts = append(parts, gemini.Part{InlineData: &gemini.Blob{
				MimeType: "image/jpeg",
				Data:     p.ImageURL.ImageURL.URL,
			}})
		}
	}
	return parts
}

// RequestPath implements [OpenAIChatTranslator.RequestPath]. The API version
// segment depends on the model generation.
func (g *geminiTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	version := "v1"
	if strings.HasPrefix(g.binding.Model, "gemini-2.0") || strings.HasPrefix(g.binding.Model, "gemini-1.5") {
		version = "v1beta"
	}
	if endpoint == "" {
		method := "generateContent"
		if g.stream {
			method = "streamGenerateContent?alt=sse"
		}
		endpoint = "/{version}/models/{model}:" + method
	}
	endpoint = strings.ReplaceAll(endpoint, "{version}", version)
	endpoint = strings.ReplaceAll(endpoint, "{model}", g.binding.Model)
	return joinPath(baseURL, endpoint), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (g *geminiTranslator) RequestHeaders([]byte) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("x-goog-api-key", g.binding.APIKey)
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody].
func (g *geminiTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	var resp gemini.GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gemini response: %w", err)
	}
	if resp.Error != nil {
		return nil, &UpstreamError{
			Vendor:  "gemini",
			Code:    strconv.Itoa(resp.Error.Code),
			Message: resp.Error.Message,
		}
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("no candidates returned from gemini api")
	}

	choices := make([]openai.ChatCompletionChoice, 0, len(resp.Candidates))
	for i := range resp.Candidates {
		candidate := &resp.Candidates[i]
		text, toolCalls, err := geminiCandidateContent(candidate, i)
		if err != nil {
			return nil, err
		}
		finish := candidate.FinishReason
		if finish == "" {
			finish = "stop"
		}
		choices = append(choices, openai.ChatCompletionChoice{
			Index: i,
			Message: openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   text,
				ToolCalls: toolCalls,
			},
			FinishReason: openai.FinishReason(finish),
		})
	}

	return &openai.ChatCompletionResponse{
		ID:      g.id,
		Object:  openai.ObjectChatCompletion,
		Model:   g.binding.Model,
		Choices: choices,
	}, nil
}

func geminiCandidateContent(candidate *gemini.Candidate, index int) (string, []openai.ToolCall, error) {
	var texts []string
	var toolCalls []openai.ToolCall
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return "", nil, fmt.Errorf("failed to marshal function call args: %w", err)
			}
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   fmt.Sprintf("call_%d", index),
				Type: "function",
				Function: openai.ToolCallFunction{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case part.Text != "":
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n"), toolCalls, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk]. Stream
// frames reuse the unary envelope with incremental candidate text.
func (g *geminiTranslator) ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	var resp gemini.GenerateContentResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gemini frame: %w", err)
	}
	if resp.Error != nil {
		return nil, &UpstreamError{
			Vendor:  "gemini",
			Code:    strconv.Itoa(resp.Error.Code),
			Message: resp.Error.Message,
		}
	}
	if len(resp.Candidates) == 0 {
		return nil, nil
	}

	candidate := &resp.Candidates[0]
	var texts []string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return &openai.ChatCompletionChunk{
		ID:      g.id,
		Object:  openai.ObjectChatCompletionChunk,
		Created: g.created,
		Model:   g.binding.Model,
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta:        openai.ChunkDelta{Content: strings.Join(texts, "")},
			FinishReason: openai.FinishReason(candidate.FinishReason),
		}},
	}, nil
}
