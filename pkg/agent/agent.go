// Package agent implements a conversational front end for the checker: a
// model chats with the user and invokes XML-formatted tool calls to run
// status checks and inspect sessions.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// maxIterations bounds the tool-call loop within a single user turn.
const maxIterations = 5

// Message is one turn of the conversation.
type Message struct {
	Role    string
	Content string
}

// Roles used in the conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer produces the model's reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Agent holds the conversation and drives the tool-call loop.
type Agent struct {
	completer Completer
	tools     map[string]Tool
	logger    *zap.Logger
	history   []Message
}

// New creates an agent with the given tools. A nil logger means no logging.
func New(completer Completer, logger *zap.Logger, tools ...Tool) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Agent{
		completer: completer,
		tools:     make(map[string]Tool, len(tools)),
		logger:    logger,
	}
	for _, tool := range tools {
		a.tools[tool.Name()] = tool
	}
	a.history = []Message{{Role: RoleSystem, Content: a.systemPrompt()}}
	return a
}

// Send adds the user's message to the conversation and returns the model's
// final reply, running tool calls along the way.
func (a *Agent) Send(ctx context.Context, input string) (string, error) {
	a.history = append(a.history, Message{Role: RoleUser, Content: input})

	for i := 0; i < maxIterations; i++ {
		reply, err := a.completer.Complete(ctx, a.history)
		if err != nil {
			return "", fmt.Errorf("completion failed: %w", err)
		}
		a.history = append(a.history, Message{Role: RoleAssistant, Content: reply})

		if !HasToolCall(reply) {
			return reply, nil
		}

		call, _, err := ParseToolCall(reply)
		if err != nil {
			a.feedback(fmt.Sprintf("Could not parse your tool call: %v. Reply with a corrected call or a plain answer.", err))
			continue
		}

		result := a.execute(ctx, call)
		a.feedback(result)
	}

	return "", fmt.Errorf("model did not produce a final answer after %d tool calls", maxIterations)
}

// Reset discards the conversation, keeping only the system prompt.
func (a *Agent) Reset() {
	a.history = a.history[:1]
}

func (a *Agent) execute(ctx context.Context, call *ToolCall) string {
	tool, ok := a.tools[call.ToolName]
	if !ok {
		return fmt.Sprintf("Unknown tool %q. Available tools: %s.", call.ToolName, strings.Join(a.toolNames(), ", "))
	}

	a.logger.Info("executing tool", zap.String("tool", call.ToolName))
	result, err := tool.Execute(ctx, call.ArgumentsXML())
	if err != nil {
		a.logger.Warn("tool failed", zap.String("tool", call.ToolName), zap.Error(err))
		return fmt.Sprintf("Tool %s failed: %v", call.ToolName, err)
	}
	return result
}

// feedback appends a tool result as a user turn so the model sees it on the
// next completion.
func (a *Agent) feedback(content string) {
	a.history = append(a.history, Message{Role: RoleUser, Content: "[tool result]\n" + content})
}

func (a *Agent) toolNames() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are a visa status assistant. You help users check the status of their
visa applications. Collect the location, application ID, passport number and
surname before running a check, then report the outcome in plain language.

To use a tool, reply with exactly one tool call in this format and nothing
else after it:

<tool>
<tool_name>NAME</tool_name>
<arguments>
  <argument_name>value</argument_name>
</arguments>
</tool>

Available tools:
`)
	for _, tool := range a.tools {
		fmt.Fprintf(&b, "\n- %s: %s\n", tool.Name(), tool.Description())
	}
	b.WriteString("\nWhen you have the final answer for the user, reply without any tool call.")
	return b.String()
}
