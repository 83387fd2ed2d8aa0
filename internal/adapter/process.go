// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// processWaitDelay is the grace a timed-out child gets between stdin/stdout
// teardown and the hard kill.
const processWaitDelay = 5 * time.Second

// process runs a local command per request and speaks to it over
// stdin/stdout (llama.cpp-style CLI wrappers, test harnesses, shims).
type process struct {
	binding *modelconfig.Binding
	command string
	args    []string
}

func newProcess(binding *modelconfig.Binding) *process {
	args := make([]string, 0, len(binding.Args))
	for _, arg := range binding.Args {
		args = append(args, modelconfig.ResolveEnv(arg))
	}
	return &process{
		binding: binding,
		command: modelconfig.ResolveEnv(binding.Command),
		args:    args,
	}
}

// Family implements [Adapter.Family].
func (a *process) Family() string { return modelconfig.AdapterProcess }

// Available implements [Adapter.Available]. The command must resolve to a
// file, directly or through PATH.
func (a *process) Available() error {
	if a.command == "" {
		return errors.New("missing command")
	}
	if _, err := os.Stat(a.command); err == nil {
		return nil
	}
	if _, err := exec.LookPath(a.command); err != nil {
		return fmt.Errorf("command %q not found", a.command)
	}
	return nil
}

// Chat implements [Adapter.Chat].
func (a *process) Chat(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.binding.TimeoutDuration())
	defer cancel()

	input, err := a.formatInput(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, a.command, a.args...)
	cmd.Dir = a.binding.WorkingDir
	cmd.Stdin = strings.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = processWaitDelay
	if len(a.binding.Env) > 0 {
		env := os.Environ()
		for _, k := range slices.Sorted(maps.Keys(a.binding.Env)) {
			env = append(env, k+"="+modelconfig.ResolveEnv(a.binding.Env[k]))
		}
		cmd.Env = env
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("process timed out after %gs: %w", a.binding.Timeout, context.DeadlineExceeded)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("process exited with code %d", exitErr.ExitCode())
			}
			return nil, fmt.Errorf("process failed (code %d): %s", exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("process execution failed: %w", err)
	}
	return a.parseOutput(stdout.Bytes()), nil
}

// ChatStream implements [Adapter.ChatStream]. A child process answers in
// one shot, so the response folds into a single terminal chunk.
func (a *process) ChatStream(ctx context.Context, req *openai.ChatCompletionRequest) (Stream, error) {
	resp, err := a.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	return newUnaryStream(resp), nil
}

// formatInput renders what goes to the child's stdin:
//
//	json   - the full request as JSON, model rewritten to the upstream name
//	prompt - a "System:/User:/Assistant:" transcript
//	openai - just {"messages": [...]}
//	else   - the text of the last user message
func (a *process) formatInput(req *openai.ChatCompletionRequest) (string, error) {
	switch a.binding.InputFormat {
	case "json":
		body, err := json.Marshal(req)
		if err != nil {
			return "", fmt.Errorf("failed to marshal process input: %w", err)
		}
		body, err = sjson.SetBytes(body, "model", a.binding.Model)
		if err != nil {
			return "", fmt.Errorf("failed to rewrite model name: %w", err)
		}
		return string(body), nil
	case "prompt":
		var lines []string
		for i := range req.Messages {
			m := &req.Messages[i]
			switch m.Role {
			case openai.MessageRoleSystem:
				lines = append(lines, "System: "+m.Content.Text())
			case openai.MessageRoleUser:
				lines = append(lines, "User: "+m.Content.Text())
			case openai.MessageRoleAssistant:
				lines = append(lines, "Assistant: "+m.Content.Text())
			}
		}
		return strings.Join(lines, "\n"), nil
	case "openai":
		body, err := json.Marshal(struct {
			Messages []openai.Message `json:"messages"`
		}{Messages: req.Messages})
		if err != nil {
			return "", fmt.Errorf("failed to marshal process input: %w", err)
		}
		return string(body), nil
	default:
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == openai.MessageRoleUser {
				return req.Messages[i].Content.Text(), nil
			}
		}
		return "", nil
	}
}

// parseOutput interprets the child's stdout. JSON output may be a full chat
// completion, a bare {"content": ...} object, or arbitrary JSON taken as
// text; anything unparseable is the reply itself.
func (a *process) parseOutput(output []byte) *openai.ChatCompletionResponse {
	output = bytes.TrimSpace(output)

	if a.binding.OutputFormat != "text" && json.Valid(output) {
		parsed := gjson.ParseBytes(output)
		if parsed.Get("choices").IsArray() {
			var resp openai.ChatCompletionResponse
			if err := json.Unmarshal(output, &resp); err == nil {
				if resp.ID == "" {
					resp.ID = newProcessID()
				}
				if resp.Object == "" {
					resp.Object = openai.ObjectChatCompletion
				}
				if resp.Created == 0 {
					resp.Created = time.Now().Unix()
				}
				if resp.Model == "" {
					resp.Model = a.binding.Model
				}
				return &resp
			}
		}
		if content := parsed.Get("content"); content.Exists() {
			return a.textResponse(content.String())
		}
		if parsed.Type == gjson.String {
			return a.textResponse(parsed.String())
		}
		return a.textResponse(string(output))
	}
	return a.textResponse(string(output))
}

func (a *process) textResponse(content string) *openai.ChatCompletionResponse {
	return &openai.ChatCompletionResponse{
		ID:      newProcessID(),
		Object:  openai.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   a.binding.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: content,
			},
			FinishReason: openai.FinishReasonStop,
		}},
	}
}

func newProcessID() string {
	return fmt.Sprintf("process-%d", time.Now().Unix())
}
