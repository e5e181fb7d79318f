package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/gateway/live/protocol"
	"github.com/prestolabs/presto/pkg/gateway/persona"
)

// maxToolRounds bounds the execute-and-ask-again loop within one turn so a
// model stuck requesting tools cannot spin forever.
const maxToolRounds = 4

// respond runs one user turn: stream a completion, execute any tool calls
// it requests, feed the results back, and go again until the model answers
// in plain text. Deltas reach the client as they arrive.
func (s *Session) respond(ctx context.Context, text string) error {
	s.history.add(protocol.RoleUser, text)

	system := persona.BuildSystemPrompt(s.modes.Current(), s.persona)
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, s.history.size()+1)
	messages = append(messages, openai.SystemMessage(system))
	messages = append(messages, s.history.messages()...)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(s.model),
		Messages: messages,
		Tools:    s.tools.CompletionTools(),
	}

	var reply strings.Builder
	for round := 0; ; round++ {
		toolCalls, err := s.streamRound(ctx, &params, &reply)
		if err != nil {
			if errors.Is(err, errClientGone) {
				return err
			}
			s.logger.Error("chat completion failed", "error", err)
			if sendErr := s.send(protocol.NewError(string(core.ErrConnection), "assistant reply failed, try again")); sendErr != nil {
				return sendErr
			}
			return nil
		}
		if len(toolCalls) == 0 {
			break
		}
		if round == maxToolRounds-1 {
			s.logger.Warn("tool round limit reached, dropping pending calls",
				"calls", len(toolCalls))
			break
		}
		if err := s.runToolCalls(ctx, &params, toolCalls); err != nil {
			return err
		}
	}

	if reply.Len() > 0 {
		s.history.add(protocol.RoleAssistant, reply.String())
	}
	return s.send(protocol.NewChatDone())
}

// streamRound makes one completion call, forwarding content deltas as chat
// frames. It appends the accumulated assistant turn to params for any
// follow-up round and returns the tool calls the model requested, in output
// order. Send failures come back wrapped in errClientGone.
func (s *Session) streamRound(ctx context.Context, params *openai.ChatCompletionNewParams, reply *strings.Builder) ([]openai.ChatCompletionMessageToolCall, error) {
	stream := s.stream(ctx, *params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		reply.WriteString(delta)
		if err := s.send(protocol.NewChatDelta(delta)); err != nil {
			return nil, fmt.Errorf("%w: %v", errClientGone, err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	if len(acc.Choices) == 0 {
		return nil, errors.New("completion stream carried no choices")
	}

	message := acc.Choices[0].Message
	params.Messages = append(params.Messages, message.ToParam())
	return message.ToolCalls, nil
}

// runToolCalls executes the requested tools in order, mirrors each result
// to the client panel, and appends tool messages for the follow-up round.
// Tool failures produce error results the model can read and recover from;
// they never end the session.
func (s *Session) runToolCalls(ctx context.Context, params *openai.ChatCompletionNewParams, calls []openai.ChatCompletionMessageToolCall) error {
	for _, call := range calls {
		result, err := s.tools.Execute(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
		if err != nil {
			s.logger.Warn("tool execution failed", "tool", call.Function.Name, "error", err)
		}
		if err := s.send(protocol.NewToolResult(call.Function.Name, result)); err != nil {
			return fmt.Errorf("%w: %v", errClientGone, err)
		}
		params.Messages = append(params.Messages, openai.ToolMessage(string(result), call.ID))
	}
	return nil
}
