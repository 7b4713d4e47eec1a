package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeModelJSON unmarshals model output into v. It tolerates markdown
// fences and leading or trailing prose around a single JSON object, and
// unwraps documents nested under a "properties" key.
func DecodeModelJSON(text string, v any) error {
	raw, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal model JSON (len=%d): %w", len(raw), err)
	}
	return nil
}

// RecoverFromError tries to salvage a structured document from a failed
// call. Some providers return the generated JSON inside the error body when
// schema validation fails, occasionally wrapped twice under "properties".
func RecoverFromError(err error, v any) bool {
	if err == nil {
		return false
	}
	var candidates []string

	var raw interface{ RawJSON() string }
	if errors.As(err, &raw) {
		body := raw.RawJSON()
		candidates = append(candidates, body)
		candidates = append(candidates, embeddedDocuments(body)...)
	}
	candidates = append(candidates, err.Error())

	for _, c := range candidates {
		doc, err := extractJSON(c)
		if err != nil || isErrorEnvelope(doc) {
			continue
		}
		if json.Unmarshal(doc, v) == nil {
			return true
		}
	}
	return false
}

func extractJSON(text string) ([]byte, error) {
	s := strings.TrimSpace(stripFences(text))
	if s == "" {
		return nil, io.ErrUnexpectedEOF
	}

	raw := []byte(s)
	if !json.Valid(raw) {
		start := strings.IndexByte(s, '{')
		end := strings.LastIndexByte(s, '}')
		if start == -1 || end <= start {
			return nil, fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
		}
		raw = []byte(s[start : end+1])
	}
	return unwrapProperties(raw), nil
}

// embeddedDocuments digs out JSON strings carried in error fields,
// e.g. {"error":{"failed_generation":"{...}"}}.
func embeddedDocuments(body string) []string {
	var envelope map[string]any
	if json.Unmarshal([]byte(body), &envelope) != nil {
		return nil
	}
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for _, child := range t {
				walk(child)
			}
		case string:
			if strings.Contains(t, "{") {
				out = append(out, t)
			}
		}
	}
	walk(envelope)
	return out
}

func isErrorEnvelope(raw []byte) bool {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return false
	}
	_, hasErr := fields["error"]
	return hasErr && len(fields) <= 2
}

// unwrapProperties strips up to two levels of {"properties": {...}} wrapping.
func unwrapProperties(raw []byte) []byte {
	for i := 0; i < 2; i++ {
		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) != nil || len(fields) != 1 {
			return raw
		}
		inner, ok := fields["properties"]
		if !ok || len(inner) == 0 || inner[0] != '{' {
			return raw
		}
		raw = inner
	}
	return raw
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	if end <= 1 {
		return text
	}
	return strings.Join(lines[1:end], "\n")
}
