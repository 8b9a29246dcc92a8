package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aura-rag/internal/db"
	"aura-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

// SearchK is how many hits the search tools return.
const SearchK = 2

var ErrUnknownTool = errors.New("unknown tool")

// ist is India Standard Time. A fixed zone avoids depending on tzdata.
var ist = time.FixedZone("IST", 5*60*60+30*60)

// Searcher is the query side of a retriever.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
}

type SummarySaver interface {
	Save(ctx context.Context, summary *db.SessionSummary) error
}

type Calendar interface {
	EventsInDuration(ctx context.Context, startDate, endDate string) (json.RawMessage, error)
	EventsByType(ctx context.Context, eventType string) (json.RawMessage, error)
}

// Toolbox holds what the assistant tools act on. A nil dependency makes its
// tools report an error to the model instead of failing the turn.
type Toolbox struct {
	Conversations Searcher
	Textbooks     Searcher
	Calendar      Calendar
	Summaries     SummarySaver
	// Alert receives emergency escalations after they are logged.
	Alert func(userID, reason string)
	Now   func() time.Time
}

func objectSchema(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

var definitions = map[string]llms.FunctionDefinition{
	ToolContactEmergency: {
		Name:        ToolContactEmergency,
		Description: "Triggers an emergency alert for a user in distress and notifies their emergency contact.",
		Parameters: objectSchema([]string{"user_id", "reason"}, map[string]any{
			"user_id": stringProp("The id of the user in distress."),
			"reason":  stringProp("A brief, direct reason for the alert."),
		}),
	},
	ToolSimilarConversations: {
		Name:        ToolSimilarConversations,
		Description: "Searches anonymized past counselling conversations similar to the query for empathetic context.",
		Parameters: objectSchema([]string{"query"}, map[string]any{
			"query": stringProp("What the user is going through, in their words."),
		}),
	},
	ToolCounselorTextbooks: {
		Name:        ToolCounselorTextbooks,
		Description: "Searches counselling and human development textbooks for expert advice and strategies.",
		Parameters: objectSchema([]string{"query"}, map[string]any{
			"query": stringProp("The topic to look up."),
		}),
	},
	ToolEventsInDuration: {
		Name:        ToolEventsInDuration,
		Description: "Retrieves all academic events scheduled between a start and end date.",
		Parameters: objectSchema([]string{"start_date", "end_date"}, map[string]any{
			"start_date": stringProp("The start date of the period, in YYYY-MM-DD format."),
			"end_date":   stringProp("The end date of the period, in YYYY-MM-DD format."),
		}),
	},
	ToolEventsByType: {
		Name:        ToolEventsByType,
		Description: "Retrieves all academic events of a specific type, e.g. 'exam' or 'lecture'.",
		Parameters: objectSchema([]string{"event_type"}, map[string]any{
			"event_type": stringProp("The type of the event to retrieve."),
		}),
	},
	ToolSaveSummary: {
		Name:        ToolSaveSummary,
		Description: "Saves the conversation summary as the session note.",
		Parameters: objectSchema([]string{"session_id", "user_id", "summary"}, map[string]any{
			"session_id": stringProp("The current session id."),
			"user_id":    stringProp("The user id."),
			"summary":    stringProp("A concise, third-person summary of the conversation."),
		}),
	},
	ToolCurrentDatetime: {
		Name:        ToolCurrentDatetime,
		Description: "Gets the current date and time in India Standard Time. Call it first to resolve relative dates like 'today' or 'next week'.",
		Parameters:  objectSchema([]string{}, map[string]any{}),
	},
}

// Definitions returns the tool definitions for names, in order.
func Definitions(names []string) ([]llms.Tool, error) {
	tools := make([]llms.Tool, 0, len(names))
	for _, name := range names {
		def, ok := definitions[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		tools = append(tools, llms.Tool{Type: "function", Function: &def})
	}
	return tools, nil
}

type statusResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Call runs the named tool with JSON arguments and returns its JSON result.
func (tb *Toolbox) Call(ctx context.Context, name, arguments string) (string, error) {
	if arguments == "" {
		arguments = "{}"
	}
	var (
		out any
		err error
	)
	switch name {
	case ToolContactEmergency:
		var args struct {
			UserID string `json:"user_id"`
			Reason string `json:"reason"`
		}
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			out = tb.contactEmergency(args.UserID, args.Reason)
		}
	case ToolSimilarConversations:
		var args struct {
			Query string `json:"query"`
		}
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			out, err = tb.similarConversations(ctx, args.Query)
		}
	case ToolCounselorTextbooks:
		var args struct {
			Query string `json:"query"`
		}
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			out, err = tb.counselorTextbooks(ctx, args.Query)
		}
	case ToolEventsInDuration:
		var args struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			out, err = tb.calendar().EventsInDuration(ctx, args.StartDate, args.EndDate)
		}
	case ToolEventsByType:
		var args struct {
			EventType string `json:"event_type"`
		}
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			out, err = tb.calendar().EventsByType(ctx, args.EventType)
		}
	case ToolSaveSummary:
		var args struct {
			SessionID string `json:"session_id"`
			UserID    string `json:"user_id"`
			Summary   string `json:"summary"`
		}
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			out, err = tb.saveSummary(ctx, args.SessionID, args.UserID, args.Summary)
		}
	case ToolCurrentDatetime:
		out = CurrentDatetime(tb.now())
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s result: %w", name, err)
	}
	return string(b), nil
}

func (tb *Toolbox) contactEmergency(userID, reason string) statusResult {
	log.Error().Str("user_id", userID).Str("reason", reason).Msg("EMERGENCY ALERT: notifying emergency contact")
	if tb.Alert != nil {
		tb.Alert(userID, reason)
	}
	return statusResult{
		Status:  "success",
		Message: fmt.Sprintf("Emergency contact for user %s has been notified.", userID),
	}
}

func (tb *Toolbox) similarConversations(ctx context.Context, query string) ([]string, error) {
	if tb.Conversations == nil {
		return nil, errors.New("conversation store is not configured")
	}
	results, err := tb.Conversations.Search(ctx, query, SearchK)
	if err != nil {
		return nil, err
	}
	outputs := make([]string, 0, len(results))
	for _, r := range results {
		if s, ok := r.Metadata["output"].(string); ok && s != "" {
			outputs = append(outputs, s)
			continue
		}
		outputs = append(outputs, "No output found.")
	}
	return outputs, nil
}

func (tb *Toolbox) counselorTextbooks(ctx context.Context, query string) ([]string, error) {
	if tb.Textbooks == nil {
		return nil, errors.New("textbook store is not configured")
	}
	results, err := tb.Textbooks.Search(ctx, query, SearchK)
	if err != nil {
		return nil, err
	}
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return docs, nil
}

func (tb *Toolbox) saveSummary(ctx context.Context, sessionID, userID, summary string) (statusResult, error) {
	if tb.Summaries == nil {
		return statusResult{}, errors.New("summary store is not configured")
	}
	err := tb.Summaries.Save(ctx, &db.SessionSummary{
		SessionID: sessionID,
		UserID:    userID,
		Summary:   summary,
		CreatedAt: tb.now().UTC(),
	})
	if err != nil {
		return statusResult{}, err
	}
	log.Info().Str("session_id", sessionID).Str("user_id", userID).Msg("saved session summary")
	return statusResult{Status: "success"}, nil
}

func (tb *Toolbox) calendar() Calendar {
	if tb.Calendar == nil {
		return missingCalendar{}
	}
	return tb.Calendar
}

func (tb *Toolbox) now() time.Time {
	if tb.Now != nil {
		return tb.Now()
	}
	return time.Now()
}

type missingCalendar struct{}

func (missingCalendar) EventsInDuration(context.Context, string, string) (json.RawMessage, error) {
	return nil, errors.New("calendar is not configured")
}

func (missingCalendar) EventsByType(context.Context, string) (json.RawMessage, error) {
	return nil, errors.New("calendar is not configured")
}

// DatetimeResult is what get_current_datetime reports.
type DatetimeResult struct {
	Status             string `json:"status"`
	CurrentISTDatetime string `json:"current_ist_datetime"`
	CurrentUTCDatetime string `json:"current_utc_datetime"`
	DateISOFormat      string `json:"date_iso_format"`
	DayOfWeek          string `json:"day_of_week"`
	Timezone           string `json:"timezone"`
}

func CurrentDatetime(now time.Time) DatetimeResult {
	local := now.In(ist)
	return DatetimeResult{
		Status:             "success",
		CurrentISTDatetime: local.Format(time.RFC3339),
		CurrentUTCDatetime: now.UTC().Format(time.RFC3339),
		DateISOFormat:      local.Format(dateLayout),
		DayOfWeek:          local.Weekday().String(),
		Timezone:           "Asia/Kolkata (IST)",
	}
}
