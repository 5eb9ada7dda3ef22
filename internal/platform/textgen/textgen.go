// Package textgen abstracts the text-generation capability consumed by
// the extractor, mapper, and synthesizer stages: given a prompt and a
// response schema, return a schema-conforming JSON object or an error.
package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput marks generator responses that are not valid JSON.
var ErrMalformedOutput = errors.New("malformed generator output")

// Request describes one generation call. Schema is a JSON schema document;
// its top-level title names the expected artifact.
type Request struct {
	Prompt    string
	Schema    json.RawMessage
	MaxTokens int
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if len(r.Schema) == 0 {
		return errors.New("schema is required")
	}
	return nil
}

// Generator is the external collaborator contract shared by stages 1, 2
// and 4.
type Generator interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}

// ExtractJSON pulls the first JSON object out of raw model text, tolerating
// surrounding prose and code fences.
func ExtractJSON(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return nil, fmt.Errorf("%w: invalid JSON object", ErrMalformedOutput)
				}
				return json.RawMessage(candidate), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unterminated JSON object", ErrMalformedOutput)
}

// SchemaTitle reads the top-level title of a JSON schema document.
func SchemaTitle(schema json.RawMessage) string {
	var doc struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(schema, &doc); err != nil {
		return ""
	}
	return doc.Title
}
