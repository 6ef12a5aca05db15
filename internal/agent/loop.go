package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andrew-thompson-55/trainer-2.0/internal/llm"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
	"github.com/andrew-thompson-55/trainer-2.0/internal/tools"
)

// Fallback replies for the loop's abnormal terminations.
const (
	replyEmptyResponse = "I'm sorry, I couldn't generate a response. Please try again."
	replyNoText        = "I've completed the requested actions."
	replyMaxIterations = "I've processed your request but hit a complexity limit. Here's what I did so far."
)

const systemPromptTemplate = `You are an expert endurance training coach.

ATHLETE CONTEXT:
%s

COACHING PHILOSOPHY:
You are a thoughtful, data-driven coach. Before making changes to the training plan:
1. PLAN: Consider the athlete's current state -- wellness data, recent training load, upcoming schedule, and goals.
2. ACT: Use tools to query data and make changes. Chain multiple tool calls when needed (e.g., check schedule before moving a workout).
3. REFLECT: Verify tool results before responding. If a tool returns an error, explain what happened and suggest alternatives.

RULES:
1. When the user asks for a time (e.g. "6am"), ALWAYS append the timezone offset from the TIMEZONE info above.
2. If the user asks to schedule, add, or plan a workout, use the 'create_workout' tool.
3. Before modifying workouts, use 'get_upcoming_workouts' to verify the current schedule.
4. If you notice concerning patterns in wellness data (poor sleep, high soreness, declining HRV), proactively flag them.
5. Use 'save_coach_note' to remember important observations about the athlete across sessions.
6. When asked about past training, use the read tools to fetch actual data rather than guessing.
7. Be concise and actionable in your responses. Athletes want clear guidance, not essays.`

const systemAck = "Understood. I'm ready to coach with full context of the athlete's training state."

// Result is what one agent run produced, with diagnostics.
type Result struct {
	Reply      string   `json:"reply"`
	ToolsUsed  []string `json:"tools_used"`
	Iterations int      `json:"iterations"`
}

// Loop runs the bounded tool-calling conversation with the model.
type Loop struct {
	store         *store.Store
	client        llm.Client
	registry      *tools.Registry
	assembler     *Assembler
	maxIterations int
	historyTurns  int
	logger        *slog.Logger
}

// NewLoop wires the agent together. maxIterations and historyTurns
// fall back to 6 and 10 when non-positive.
func NewLoop(st *store.Store, client llm.Client, registry *tools.Registry, assembler *Assembler, maxIterations, historyTurns int, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIterations <= 0 {
		maxIterations = 6
	}
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &Loop{
		store:         st,
		client:        client,
		registry:      registry,
		assembler:     assembler,
		maxIterations: maxIterations,
		historyTurns:  historyTurns,
		logger:        logger.With("component", "agent"),
	}
}

// Run executes one coaching exchange: assemble context, converse with
// the model dispatching any tool calls it asks for, and return the
// final reply. The exchange is logged best-effort on the way out.
func (l *Loop) Run(ctx context.Context, userID, userMessage string) (*Result, error) {
	snap := l.assembler.BuildSnapshot(ctx, userID)
	systemPrompt := fmt.Sprintf(systemPromptTemplate, snap.Render())

	contents := []llm.Content{
		{Role: "user", Parts: []llm.Part{{Text: systemPrompt}}},
		{Role: "model", Parts: []llm.Part{{Text: systemAck}}},
	}
	contents = append(contents, l.loadHistory(ctx, userID)...)
	contents = append(contents, llm.Content{Role: "user", Parts: []llm.Part{{Text: userMessage}}})

	declarations := l.registry.Declarations()

	result := &Result{}
	resp, err := l.client.Generate(ctx, &llm.GenerateRequest{Contents: contents, Tools: declarations})
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	for result.Iterations < l.maxIterations {
		result.Iterations++

		if len(resp.Parts) == 0 {
			result.Reply = replyEmptyResponse
			break
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			result.Reply = joinText(resp.Parts)
			if result.Reply == "" {
				result.Reply = replyNoText
			}
			break
		}

		// Execute every requested call; a failure becomes a structured
		// error result and never blocks its siblings. All results go
		// back to the model in a single turn.
		contents = append(contents, llm.Content{Role: "model", Parts: resp.Parts})
		var responseParts []llm.Part
		for _, call := range calls {
			l.logger.Debug("executing tool", "tool", call.Name, "user_id", userID)
			toolResult := l.registry.Execute(ctx, userID, call.Name, call.Args)
			result.ToolsUsed = append(result.ToolsUsed, call.Name)
			responseParts = append(responseParts, llm.Part{
				FunctionResponse: &llm.FunctionResponse{
					Name:     call.Name,
					Response: map[string]any{"result": toolResult},
				},
			})
		}
		contents = append(contents, llm.Content{Role: "user", Parts: responseParts})

		resp, err = l.client.Generate(ctx, &llm.GenerateRequest{Contents: contents, Tools: declarations})
		if err != nil {
			return nil, fmt.Errorf("model call (iteration %d): %w", result.Iterations, err)
		}
	}

	if result.Reply == "" {
		// ran out of iterations with the model still asking for tools
		result.Reply = joinText(resp.Parts)
		if result.Reply == "" {
			result.Reply = replyMaxIterations
		}
	}

	if err := l.store.AppendChatTurn(ctx, userID, userMessage, result.Reply); err != nil {
		l.logger.Warn("chat log failed", "user_id", userID, "error", err)
	}

	l.logger.Info("agent run complete",
		"user_id", userID,
		"iterations", result.Iterations,
		"tools_used", len(result.ToolsUsed),
	)
	return result, nil
}

func (l *Loop) loadHistory(ctx context.Context, userID string) []llm.Content {
	turns, err := l.store.RecentChatTurns(ctx, userID, l.historyTurns)
	if err != nil {
		l.logger.Warn("history load failed", "user_id", userID, "error", err)
		return nil
	}
	var contents []llm.Content
	for _, t := range turns {
		contents = append(contents,
			llm.Content{Role: "user", Parts: []llm.Part{{Text: t.UserMessage}}},
			llm.Content{Role: "model", Parts: []llm.Part{{Text: t.AIResponse}}},
		)
	}
	return contents
}

func joinText(parts []llm.Part) string {
	var texts []string
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
