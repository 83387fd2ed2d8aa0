// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package adapter

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/modelgate/modelgate/internal/apischema/openai"
)

const (
	sseDataPrefix  = "data: "
	sseDoneMessage = "[DONE]"

	// sseMaxLineBytes bounds a single SSE line; large tool-call arguments
	// can push frames well past bufio's 64 KiB default.
	sseMaxLineBytes = 1 << 20
)

// sseStream reads an upstream event-stream body frame by frame. parse turns
// one data payload into a chunk; returning (nil, nil) skips the frame. The
// stream ends at [DONE], at body EOF, or after the terminal chunk.
type sseStream struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	scanner *bufio.Scanner
	parse   func(frame []byte) (*openai.ChatCompletionChunk, error)

	// pendingUsage holds a usage delivered on a dedicated choice-less
	// frame until the terminal chunk absorbs it.
	pendingUsage *openai.Usage
	done         bool
}

func newSSEStream(body io.ReadCloser, cancel context.CancelFunc, parse func([]byte) (*openai.ChatCompletionChunk, error)) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), sseMaxLineBytes)
	return &sseStream{body: body, cancel: cancel, scanner: scanner, parse: parse}
}

// Recv implements [Stream.Recv].
func (s *sseStream) Recv() (*openai.ChatCompletionChunk, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		frame, err := s.next()
		if err != nil {
			s.done = true
			return nil, err
		}
		chunk, err := s.parse(frame)
		if err != nil {
			s.done = true
			return nil, err
		}
		if chunk == nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			if chunk.Usage != nil {
				s.pendingUsage = chunk.Usage
			}
			continue
		}
		if chunk.Choices[0].FinishReason != "" {
			s.done = true
			if chunk.Usage == nil {
				chunk.Usage = s.trailingUsage()
			}
			return chunk, nil
		}
		return chunk, nil
	}
}

// next returns the payload of the next data frame, or io.EOF at [DONE] or
// when the body ends. Comment lines and other SSE fields are skipped.
func (s *sseStream) next() ([]byte, error) {
	for s.scanner.Scan() {
		data, ok := strings.CutPrefix(s.scanner.Text(), sseDataPrefix)
		if !ok {
			continue
		}
		if data == sseDoneMessage {
			return nil, io.EOF
		}
		return []byte(data), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// trailingUsage drains the frames behind the terminal chunk. OpenAI-style
// upstreams report usage on a dedicated frame between the terminal chunk
// and [DONE]; reading through to the end keeps that usage on the chunk the
// caller actually sees.
func (s *sseStream) trailingUsage() *openai.Usage {
	usage := s.pendingUsage
	for {
		frame, err := s.next()
		if err != nil {
			return usage
		}
		chunk, err := s.parse(frame)
		if err != nil || chunk == nil {
			if err != nil {
				return usage
			}
			continue
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
}

// Close implements [Stream.Close]. Cancelling the request context aborts
// the in-flight body read before the connection is released.
func (s *sseStream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.body.Close()
}

// unaryStream replays an already-complete response as a stream: the single
// terminal chunk, then EOF. Backends without a stream dialect fold through
// it.
type unaryStream struct {
	chunk *openai.ChatCompletionChunk
}

func newUnaryStream(resp *openai.ChatCompletionResponse) *unaryStream {
	chunk := &openai.ChatCompletionChunk{
		ID:      resp.ID,
		Object:  openai.ObjectChatCompletionChunk,
		Created: resp.Created,
		Model:   resp.Model,
		Usage:   resp.Usage,
	}
	choice := openai.ChatCompletionChunkChoice{FinishReason: openai.FinishReasonStop}
	if len(resp.Choices) > 0 {
		first := resp.Choices[0]
		choice.Delta = openai.ChunkDelta{
			Role:      first.Message.Role,
			Content:   first.Message.Content,
			ToolCalls: first.Message.ToolCalls,
		}
		if first.FinishReason != "" {
			choice.FinishReason = first.FinishReason
		}
	}
	chunk.Choices = []openai.ChatCompletionChunkChoice{choice}
	return &unaryStream{chunk: chunk}
}

// Recv implements [Stream.Recv].
func (s *unaryStream) Recv() (*openai.ChatCompletionChunk, error) {
	if s.chunk == nil {
		return nil, io.EOF
	}
	chunk := s.chunk
	s.chunk = nil
	return chunk, nil
}

// Close implements [Stream.Close].
func (s *unaryStream) Close() error { return nil }
