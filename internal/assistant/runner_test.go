package assistant

import (
	"context"
	"testing"
	"time"

	"aura-rag/internal/llmservice"
	"aura-rag/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type scriptedModel struct {
	replies  []*llms.ContentChoice
	received [][]llms.MessageContent
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.received = append(m.received, messages)
	if len(m.replies) == 0 {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "done"}}}, nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{r}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{ID: id, Type: "function", FunctionCall: &llms.FunctionCall{Name: name, Arguments: args}}
}

func TestTurnRunsTools(t *testing.T) {
	model := &scriptedModel{replies: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{
			toolCall("call_1", ToolSimilarConversations, `{"query":"exam stress"}`),
			toolCall("call_2", ToolCounselorTextbooks, `{"query":"exam stress"}`),
		}},
		{Content: "Exam stress is common; short breaks help."},
	}}
	tb := &Toolbox{
		Conversations: &fakeSearcher{results: []models.SearchResult{{Metadata: map[string]any{"output": "you are not alone"}}}},
		Textbooks:     &fakeSearcher{results: []models.SearchResult{{Document: "spaced study reduces anxiety"}}},
	}
	agent, err := LookupAgent("rag_insight_agent")
	require.NoError(t, err)

	reply, history, err := NewRunner(llmservice.NewClientWithModel(model, 0), tb).Turn(context.Background(), agent, nil, "exams stress me out")
	require.NoError(t, err)
	assert.Equal(t, "Exam stress is common; short breaks help.", reply)

	// human, ai tool calls, two tool results, ai answer
	require.Len(t, history, 5)
	assert.Equal(t, llms.ChatMessageTypeHuman, history[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, history[1].Role)
	assert.Len(t, history[1].Parts, 2)
	resp := history[2].Parts[0].(llms.ToolCallResponse)
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.JSONEq(t, `["you are not alone"]`, resp.Content)
	resp = history[3].Parts[0].(llms.ToolCallResponse)
	assert.JSONEq(t, `["spaced study reduces anxiety"]`, resp.Content)
	assert.Equal(t, llms.ChatMessageTypeAI, history[4].Role)

	// every request starts with the agent instruction
	require.Len(t, model.received, 2)
	for _, msgs := range model.received {
		assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	}
	assert.Len(t, model.received[1], 5)
}

func TestTurnRejectsToolOutsideAgent(t *testing.T) {
	model := &scriptedModel{replies: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{toolCall("call_1", ToolSaveSummary, `{"session_id":"s","user_id":"u","summary":"x"}`)}},
		{Content: "SAFE"},
	}}
	saved := newSummaryStore(t)
	tb := &Toolbox{Summaries: saved}
	agent, err := LookupAgent("guardrail_agent")
	require.NoError(t, err)

	reply, history, err := NewRunner(llmservice.NewClientWithModel(model, 0), tb).Turn(context.Background(), agent, nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, "SAFE", reply)

	resp := history[2].Parts[0].(llms.ToolCallResponse)
	assert.Contains(t, resp.Content, `"status":"error"`)
	_, err = saved.Latest(context.Background(), "u")
	assert.Error(t, err)
}

func TestTurnKeepsHistory(t *testing.T) {
	model := &scriptedModel{}
	agent, err := LookupAgent("aura_therapist_agent")
	require.NoError(t, err)
	r := NewRunner(llmservice.NewClientWithModel(model, 0), &Toolbox{})

	_, history, err := r.Turn(context.Background(), agent, nil, "hi")
	require.NoError(t, err)
	_, history, err = r.Turn(context.Background(), agent, history, "still there?")
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.Len(t, model.received[1], 4)
}

func TestTurnStopsAfterMaxRounds(t *testing.T) {
	var replies []*llms.ContentChoice
	for i := 0; i < 3; i++ {
		replies = append(replies, &llms.ContentChoice{ToolCalls: []llms.ToolCall{toolCall("c", ToolCurrentDatetime, "{}")}})
	}
	model := &scriptedModel{replies: replies}
	agent, err := LookupAgent("college_schedule_agent")
	require.NoError(t, err)

	r := NewRunner(llmservice.NewClientWithModel(model, 0), &Toolbox{Now: func() time.Time { return fixedNow }})
	r.MaxRounds = 2
	_, history, err := r.Turn(context.Background(), agent, nil, "what is on today?")
	assert.ErrorIs(t, err, ErrTooManyRounds)
	assert.Empty(t, history)
}

func TestCatalog(t *testing.T) {
	agents := Catalog()
	require.NotEmpty(t, agents)
	assert.Equal(t, "aura_therapist_agent", agents[0].Name)
	for _, sub := range agents[0].SubAgents {
		_, err := LookupAgent(sub)
		assert.NoError(t, err, sub)
	}
	_, err := LookupAgent("nobody")
	assert.Error(t, err)
}
