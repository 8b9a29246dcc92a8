package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aura-rag/internal/llmservice"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

const DefaultMaxRounds = 5

var ErrTooManyRounds = errors.New("tool loop did not finish")

// Runner drives one agent through a tool-calling conversation.
type Runner struct {
	Chat      *llmservice.Client
	Tools     *Toolbox
	MaxRounds int
}

func NewRunner(chat *llmservice.Client, tools *Toolbox) *Runner {
	return &Runner{Chat: chat, Tools: tools, MaxRounds: DefaultMaxRounds}
}

// Turn answers userMessage as agent. history holds earlier turns without the
// system prompt; the returned history has this turn appended, tool calls
// included.
func (r *Runner) Turn(ctx context.Context, agent AgentSpec, history []llms.MessageContent, userMessage string) (string, []llms.MessageContent, error) {
	tools, err := Definitions(agent.Tools)
	if err != nil {
		return "", history, err
	}

	turn := append([]llms.MessageContent{}, history...)
	turn = append(turn, llms.TextParts(llms.ChatMessageTypeHuman, userMessage))

	rounds := r.MaxRounds
	if rounds <= 0 {
		rounds = DefaultMaxRounds
	}
	for round := 0; round < rounds; round++ {
		messages := append([]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, agent.Instruction)}, turn...)
		choice, err := r.Chat.GenerateContent(ctx, tools, messages)
		if err != nil {
			return "", history, err
		}

		if len(choice.ToolCalls) == 0 {
			turn = append(turn, llms.TextParts(llms.ChatMessageTypeAI, choice.Content))
			return choice.Content, turn, nil
		}

		call := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, tc := range choice.ToolCalls {
			call.Parts = append(call.Parts, tc)
		}
		turn = append(turn, call)

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			turn = append(turn, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    r.callTool(ctx, agent, tc.FunctionCall),
				}},
			})
		}
	}
	return "", history, fmt.Errorf("%w after %d rounds", ErrTooManyRounds, rounds)
}

// callTool runs one call. Failures are reported back to the model as a tool
// result.
func (r *Runner) callTool(ctx context.Context, agent AgentSpec, fc *llms.FunctionCall) string {
	log.Info().Str("agent", agent.Name).Str("tool", fc.Name).Msg("calling tool")
	if !agent.Allows(fc.Name) {
		return errorResult(fmt.Errorf("tool %s is not available to %s", fc.Name, agent.Name))
	}
	out, err := r.Tools.Call(ctx, fc.Name, fc.Arguments)
	if err != nil {
		log.Error().Err(err).Str("agent", agent.Name).Str("tool", fc.Name).Msg("tool failed")
		return errorResult(err)
	}
	return out
}

func errorResult(err error) string {
	b, _ := json.Marshal(statusResult{Status: "error", Message: err.Error()})
	return string(b)
}
