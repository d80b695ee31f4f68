package executor

import (
	"encoding/json"
	"strings"

	"github.com/sentinel-review/sentinel/internal/core"
)

// parseResponse extracts the turn record from CLI stdout. Agent CLIs often
// surround the JSON object with banner text, so a balanced-brace scan pulls
// out the first object when a direct parse fails.
func parseResponse(output string) (*core.AgentResponse, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, core.ErrProtocol(core.CodeMalformedResponse, "agent produced no output")
	}

	var resp core.AgentResponse
	if err := json.Unmarshal([]byte(output), &resp); err == nil {
		return &resp, nil
	}

	extracted := extractJSON(output)
	if extracted == "" {
		return nil, core.ErrProtocol(core.CodeMalformedResponse,
			"no JSON object found in agent output")
	}
	if err := json.Unmarshal([]byte(extracted), &resp); err != nil {
		return nil, core.ErrProtocol(core.CodeMalformedResponse,
			"agent output is not a valid turn record").WithCause(err)
	}
	return &resp, nil
}

// extractJSON finds the first balanced JSON object in mixed text output.
func extractJSON(output string) string {
	start := strings.Index(output, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(output); i++ {
		c := output[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return output[start : i+1]
			}
		}
	}
	return ""
}
