package agent

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

// Tool is a capability the model can invoke through an XML tool call.
type Tool interface {
	// Name is the identifier the model uses in tool_name.
	Name() string

	// Description tells the model what the tool does and what arguments it
	// takes. It is rendered into the system prompt.
	Description() string

	// Execute runs the tool with the raw <arguments> XML and returns a
	// result string that is fed back to the model.
	Execute(ctx context.Context, argumentsXML []byte) (string, error)
}

// Checker is the orchestrator surface the chat tools need.
type Checker interface {
	CheckAuto(ctx context.Context, req checker.CheckRequest) (*checker.StatusResult, error)
	ListSessions() []checker.SessionInfo
}

// StatusTool runs a full automatic status check on behalf of the model.
type StatusTool struct {
	core Checker
}

// NewStatusTool creates the check_visa_status tool.
func NewStatusTool(core Checker) *StatusTool {
	return &StatusTool{core: core}
}

func (t *StatusTool) Name() string { return "check_visa_status" }

func (t *StatusTool) Description() string {
	return "Check the status of a visa application. Arguments: <location> (embassy or " +
		"consulate, e.g. NEPAL), <application_id> (application ID or case number), " +
		"<passport_number>, <surname> (first five characters are enough). All four are required."
}

func (t *StatusTool) Execute(ctx context.Context, argumentsXML []byte) (string, error) {
	var args struct {
		XMLName        xml.Name `xml:"arguments"`
		Location       string   `xml:"location"`
		ApplicationID  string   `xml:"application_id"`
		PassportNumber string   `xml:"passport_number"`
		Surname        string   `xml:"surname"`
	}
	if err := unmarshalXMLWithFallback(argumentsXML, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", t.Name(), err)
	}

	result, err := t.core.CheckAuto(ctx, checker.CheckRequest{
		Fields: checker.FormFields{
			Location:       args.Location,
			ApplicationID:  args.ApplicationID,
			PassportNumber: args.PassportNumber,
			Surname:        args.Surname,
		},
	})
	if err != nil {
		return "", err
	}

	if !result.Success {
		msg := "the check failed"
		if result.Err != nil {
			msg = result.Err.Message
			if result.Err.Suggestion != "" {
				msg += ". " + result.Err.Suggestion
			}
		}
		return "Check failed: " + msg, nil
	}

	data, err := json.MarshalIndent(result.Status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode status: %w", err)
	}
	return "Status check succeeded:\n" + string(data), nil
}

// SessionsTool lists the live sessions for the model.
type SessionsTool struct {
	core Checker
}

// NewSessionsTool creates the list_sessions tool.
func NewSessionsTool(core Checker) *SessionsTool {
	return &SessionsTool{core: core}
}

func (t *SessionsTool) Name() string { return "list_sessions" }

func (t *SessionsTool) Description() string {
	return "List the active check sessions with their age and state. Takes no arguments."
}

func (t *SessionsTool) Execute(ctx context.Context, argumentsXML []byte) (string, error) {
	sessions := t.core.ListSessions()
	if len(sessions) == 0 {
		return "No active sessions.", nil
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sessions: %w", err)
	}
	return string(data), nil
}
