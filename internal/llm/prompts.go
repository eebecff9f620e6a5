// internal/llm/prompts.go
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nkratz/pagepilot/internal/browser/automation"
)

const actSystemPreamble = `You are a browser automation planner. You are given the interactive
elements of a web page and an instruction. Choose the single page operation
that best fulfills the instruction.

Respond with a JSON object only:
{"method": "click" | "fill" | "goto", "selector": "<css selector from the element list>", "value": "<text to type or URL, when applicable>", "description": "<short human summary>"}

Rules:
- The selector MUST be copied verbatim from the element list.
- Use "fill" only for input, select, or textarea elements; put the text in "value".
- Use "goto" only when the instruction asks for navigation; put the URL in "value" and leave "selector" empty.`

const observeSystemPreamble = `You are a browser automation planner. You are given the interactive
elements of a web page and an optional focus instruction. List the actions a
user could take, most relevant first.

Respond with a JSON array only:
[{"selector": "<css selector from the element list>", "method": "click" | "fill", "description": "<what the action does>"}]

Selectors MUST be copied verbatim from the element list. Return at most 10 actions.`

const extractSystemPreamble = `You are a data extraction engine. You are given the visible text of a
web page and an instruction describing the data to extract. Respond with a
JSON value only, no prose.`

func buildActPrompt(instruction string, snapshot *automation.DOMSnapshot) (string, error) {
	context, err := snapshotJSON(snapshot)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(actSystemPreamble)
	b.WriteString("\n\nPage context:\n")
	b.WriteString(context)
	b.WriteString("\n\nInstruction: ")
	b.WriteString(instruction)
	return b.String(), nil
}

func buildObservePrompt(instruction string, snapshot *automation.DOMSnapshot) (string, error) {
	context, err := snapshotJSON(snapshot)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(observeSystemPreamble)
	b.WriteString("\n\nPage context:\n")
	b.WriteString(context)
	if instruction != "" {
		b.WriteString("\n\nFocus: ")
		b.WriteString(instruction)
	}
	return b.String(), nil
}

func buildExtractPrompt(instruction string, schema json.RawMessage, pageText string) string {
	var b strings.Builder
	b.WriteString(extractSystemPreamble)
	if len(schema) > 0 {
		b.WriteString("\n\nThe response must conform to this JSON schema:\n")
		b.Write(schema)
	}
	b.WriteString("\n\nPage text:\n")
	b.WriteString(pageText)
	b.WriteString("\n\nInstruction: ")
	b.WriteString(instruction)
	return b.String()
}

func snapshotJSON(snapshot *automation.DOMSnapshot) (string, error) {
	if snapshot == nil {
		return "", fmt.Errorf("nil page snapshot")
	}
	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(encoded), nil
}
