package agent

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// maxXMLSize bounds tool-call payloads so a runaway model cannot feed the
// XML parser arbitrarily large input.
const maxXMLSize = 1 * 1024 * 1024

var toolRegex = regexp.MustCompile(`(?s)<tool>.*?</tool>`)

// ampersandEntityRegex matches ampersands that already start an XML entity,
// so the fallback escaper leaves them alone.
var ampersandEntityRegex = regexp.MustCompile(`&(?:amp|lt|gt|quot|apos|#\d+|#x[0-9a-fA-F]+);`)

// ToolCall is a parsed tool invocation from the model's reply.
//
// Expected format:
//
//	<tool>
//	<tool_name>check_visa_status</tool_name>
//	<arguments>
//	  <location>NEPAL</location>
//	  <application_id>AA00EILA2X</application_id>
//	</arguments>
//	</tool>
type ToolCall struct {
	XMLName   xml.Name       `xml:"tool"`
	ToolName  string         `xml:"tool_name"`
	Arguments ArgumentsBlock `xml:"arguments"`
}

// ArgumentsBlock holds the raw XML inside the arguments element.
type ArgumentsBlock struct {
	InnerXML []byte `xml:",innerxml"`
}

// ArgumentsXML returns the arguments re-wrapped in <arguments> tags so tools
// can unmarshal into their own argument structs.
func (tc *ToolCall) ArgumentsXML() []byte {
	var buf []byte
	buf = append(buf, "<arguments>"...)
	buf = append(buf, tc.Arguments.InnerXML...)
	buf = append(buf, "</arguments>"...)
	return buf
}

// HasToolCall reports whether the text contains a tool invocation.
func HasToolCall(text string) bool {
	return toolRegex.MatchString(text)
}

// ParseToolCall extracts the first tool call from the model's reply, returning
// it together with the surrounding prose.
func ParseToolCall(text string) (*ToolCall, string, error) {
	if len(text) > maxXMLSize {
		return nil, text, fmt.Errorf("tool call exceeds maximum size of %d bytes", maxXMLSize)
	}

	match := toolRegex.FindString(text)
	if match == "" {
		return nil, text, fmt.Errorf("no tool call found in text")
	}

	var call ToolCall
	if err := unmarshalXMLWithFallback([]byte(strings.TrimSpace(match)), &call); err != nil {
		return nil, text, fmt.Errorf("failed to unmarshal tool call: %w", err)
	}
	if call.ToolName == "" {
		return nil, text, fmt.Errorf("tool_name is required in tool call")
	}

	remaining := strings.TrimSpace(toolRegex.ReplaceAllString(text, ""))
	return &call, remaining, nil
}

// unmarshalXMLWithFallback retries a failed parse after escaping bare
// ampersands, which models emit routinely.
func unmarshalXMLWithFallback(data []byte, v interface{}) error {
	if err := xml.Unmarshal(data, v); err == nil {
		return nil
	}
	return xml.Unmarshal(escapeBareAmpersands(data), v)
}

func escapeBareAmpersands(data []byte) []byte {
	text := string(data)

	entityStarts := make(map[int]bool)
	for _, match := range ampersandEntityRegex.FindAllStringIndex(text, -1) {
		entityStarts[match[0]] = true
	}

	var b strings.Builder
	b.Grow(len(text) + 16)
	for i := 0; i < len(text); i++ {
		if text[i] == '&' && !entityStarts[i] {
			b.WriteString("&amp;")
		} else {
			b.WriteByte(text[i])
		}
	}
	return []byte(b.String())
}
