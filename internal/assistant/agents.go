package assistant

import "fmt"

// Tool names as offered to the model.
const (
	ToolContactEmergency     = "contact_emergency_support"
	ToolSimilarConversations = "search_similar_conversations"
	ToolCounselorTextbooks   = "search_counselor_textbooks"
	ToolEventsInDuration     = "get_events_in_duration"
	ToolEventsByType         = "get_events_by_type"
	ToolSaveSummary          = "save_summary"
	ToolCurrentDatetime      = "get_current_datetime"
)

// AgentSpec declares one agent: its prompt, the tools it may call and the
// specialists it hands work to.
type AgentSpec struct {
	Name        string
	Model       string
	Description string
	Instruction string
	Tools       []string
	SubAgents   []string
}

const therapistInstruction = `You are "AURA," an empathetic and professional AI mental health assistant. Your personality is calm, supportive, and non-judgmental. Your goal is to provide a safe space for users to express themselves and to offer helpful, evidence-based guidance.
Follow these steps in order:
1. Safety first: if a message contains any hint of suicide, self-harm, or immediate danger, hand over to the guardrail_agent.
2. Active listening and insight: validate the user's feelings, then use the rag_insight_agent to gather context from past conversations and expert texts.
3. Synthesize and respond: combine the insights into one cohesive, empathetic response.
4. Check for context: if the query or the insights mention college, school, exams, or events, use the college_schedule_agent.
5. Conclude and summarize: when the conversation reaches a natural end, use the summarizer_agent to create a session note.`

const collegeInstruction = `You answer questions about the academic calendar.
1. For any query involving a date or time range ('today', 'next week', 'what exams are coming up?'), first call get_current_datetime.
2. Use its date_iso_format value as "today".
3. From that date, calculate the start and end dates the query needs. If today is 2025-09-15 and the user asks about next week, use 2025-09-15 to 2025-09-22.
4. Call get_events_by_type or get_events_in_duration with the calculated values.`

var catalog = []AgentSpec{
	{
		Name:        "aura_therapist_agent",
		Model:       "gemini-2.5-pro",
		Description: "The primary assistant who orchestrates the therapeutic workflow by delegating tasks to a team of specialist agents.",
		Instruction: therapistInstruction,
		SubAgents:   []string{"guardrail_agent", "rag_insight_agent", "college_schedule_agent", "summarizer_agent"},
	},
	{
		Name:        "guardrail_agent",
		Model:       "gemini-2.5-flash",
		Description: "Detects whether a user is in immediate danger and triggers an emergency contact.",
		Instruction: "Analyze the user's message. If it contains any indication of immediate self-harm or suicidal intent, you MUST call the contact_emergency_support tool with a brief, direct reason. If there is no immediate danger, respond with 'SAFE'.",
		Tools:       []string{ToolContactEmergency},
	},
	{
		Name:        "rag_insight_agent",
		Model:       "gemini-2.5-pro",
		Description: "Searches similar anonymized conversations and counselling textbooks to understand the user's problem.",
		Instruction: "To understand the user's query, use BOTH search_similar_conversations AND search_counselor_textbooks. After getting results from both, synthesize them into a single, comprehensive insight.",
		Tools:       []string{ToolSimilarConversations, ToolCounselorTextbooks},
	},
	{
		Name:        "college_schedule_agent",
		Model:       "gemini-2.5-flash",
		Description: "Provides college schedules, exams and events from the academic calendar API.",
		Instruction: collegeInstruction,
		Tools:       []string{ToolEventsInDuration, ToolEventsByType, ToolCurrentDatetime},
	},
	{
		Name:        "summarizer_agent",
		Model:       "gemini-2.5-flash",
		Description: "Summarizes a conversation and saves it as a session note.",
		Instruction: "Create a concise, third-person summary of the conversation, capturing the user's main concerns and the key advice given. Then you MUST call save_summary to store it.",
		Tools:       []string{ToolSaveSummary},
	},
}

// Catalog returns the agent definitions, root agent first.
func Catalog() []AgentSpec {
	out := make([]AgentSpec, len(catalog))
	copy(out, catalog)
	return out
}

func LookupAgent(name string) (AgentSpec, error) {
	for _, a := range catalog {
		if a.Name == name {
			return a, nil
		}
	}
	return AgentSpec{}, fmt.Errorf("unknown agent %q", name)
}

// Allows reports whether the agent may call tool.
func (a AgentSpec) Allows(tool string) bool {
	for _, t := range a.Tools {
		if t == tool {
			return true
		}
	}
	return false
}
